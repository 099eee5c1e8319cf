package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"object-detection-sensor/config"
	"object-detection-sensor/internal/annotate"
	"object-detection-sensor/internal/api"
	"object-detection-sensor/internal/api/handlers"
	"object-detection-sensor/internal/cleanup"
	"object-detection-sensor/internal/database"
	"object-detection-sensor/internal/detection"
	"object-detection-sensor/internal/integrations/homeassistant"
	"object-detection-sensor/internal/integrations/mqtt"
	"object-detection-sensor/internal/integrations/rekognition"
	"object-detection-sensor/internal/logger"
	"object-detection-sensor/internal/poller"
	"object-detection-sensor/internal/server/sse"
	"object-detection-sensor/internal/storage"
	"object-detection-sensor/internal/util/timezone"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const defaultConfigPath = "/config/config.yaml"

// set via -ldflags
var version = "dev"

func main() {
	configPath := pflag.StringP("config", "c", defaultConfigPath, "path to the YAML configuration file")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logCloser, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}
	defer logCloser.Close()

	log.Infof("Starting object detection sensor %s", version)
	timezone.Initialize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Remote services ---
	store, err := storage.NewS3Client(storage.S3Options{
		Endpoint:  cfg.Sensor.S3Endpoint,
		Region:    cfg.Sensor.Region,
		AccessKey: cfg.Sensor.AWSID,
		SecretKey: cfg.Sensor.AWSKey,
		Secure:    true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}
	detector := rekognition.NewClient(cfg.Sensor.Region, cfg.Sensor.AWSID, cfg.Sensor.AWSKey)

	// --- Sensor ---
	fs := afero.NewOsFs()
	sensorCfg := detection.NewConfig(cfg.Sensor)
	opts := []detection.Option{detection.WithFs(fs)}
	annotatedPath := ""
	if sensorCfg.Variant == detection.VariantAnnotate {
		annotator, err := annotate.New(fs, sensorCfg.Box)
		if err != nil {
			log.Fatalf("Failed to initialize annotator: %v", err)
		}
		opts = append(opts, detection.WithAnnotator(annotator))
		annotatedPath = detection.BoxesPath(sensorCfg.InputFile)
	}
	sensor := detection.NewSensor(sensorCfg, store, detector, opts...)
	active := sensor.Config()
	log.WithFields(log.Fields{
		"name":           active.Name,
		"input_file":     active.InputFile,
		"bucket":         active.Bucket,
		"labels_to_find": active.LabelsToFind,
		"variant":        active.Variant,
		"max_checks":     active.MaxAllowedChecks,
	}).Info("Sensor configured")

	// Live-Events für /api/events
	hub := sse.NewHub()
	go hub.Run(ctx)

	pollOpts := []poller.Option{
		poller.WithTickTimeout(cfg.Poll.TickTimeout()),
		poller.WithListener(hub),
	}

	// --- Check history ---
	var history handlers.CheckHistory
	var cleanupService *cleanup.Service
	if cfg.DB.Enabled {
		db, err := database.Open(cfg.DB)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close(db)

		repo := database.NewCheckRepository(db)
		history = repo
		pollOpts = append(pollOpts, poller.WithHistory(repo))

		cleanupService = cleanup.NewService(repo, cfg.DB.RetentionDays, time.Hour, nil)
		cleanupService.StartBackgroundCleanup()
	} else {
		log.Info("Check history is disabled in config.")
	}

	// --- MQTT / Home Assistant ---
	var mqttClient *mqtt.Client
	var discovery *homeassistant.DiscoveryManager
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if cfg.MQTT.HomeAssistant.Enabled {
			mqttClient.SetWill(homeassistant.AvailabilityTopic, homeassistant.PayloadOffline)
			discovery = homeassistant.NewDiscoveryManager(mqttClient, cfg.MQTT.HomeAssistant, version)
			publisher := homeassistant.NewPublisher(mqttClient, sensor.Name())
			pollOpts = append(pollOpts, poller.WithPublisher(publisher))

			// Discovery und State nach jedem (Wieder-)Verbinden erneut senden
			mqttClient.OnConnect = func() {
				go announce(discovery, publisher, sensor)
			}
		}
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to connect MQTT client: %v. Continuing without MQTT.", err)
		}
	} else {
		log.Info("MQTT is disabled in config.")
	}

	// --- Poller ---
	p := poller.New(sensor, cfg.Poll.ScanInterval(), pollOpts...)
	p.Start(ctx)

	// --- HTTP API ---
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	apiHandler := handlers.NewAPIHandler(sensor, history, p, fs, annotatedPath)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(apiHandler, handlers.NewEventHandler(hub)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	p.Stop()
	if cleanupService != nil {
		cleanupService.StopBackgroundCleanup()
	}

	if discovery != nil && mqttClient.IsConnected() {
		if err := discovery.PublishAvailability(false); err != nil {
			log.Warnf("Failed to publish availability: %v", err)
		}
	}
	if mqttClient != nil {
		mqttClient.Stop()
	}

	log.Info("Server stopped.")
}

// announce publishes discovery, availability and the current sensor state.
func announce(discovery *homeassistant.DiscoveryManager, publisher *homeassistant.Publisher, sensor homeassistant.SensorSource) {
	if err := discovery.RegisterSensor(sensor.Name()); err != nil {
		log.Errorf("Failed to register Home Assistant sensor: %v", err)
		return
	}
	if err := discovery.PublishAvailability(true); err != nil {
		log.Errorf("Failed to publish availability: %v", err)
	}
	if err := publisher.PublishSensor(sensor, true); err != nil {
		log.Errorf("Failed to publish sensor state: %v", err)
	}
}

package rekognition

import (
	"context"
	"fmt"

	"object-detection-sensor/internal/detection"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsrekognition "github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	log "github.com/sirupsen/logrus"
)

// API is the subset of the Rekognition client used here.
type API interface {
	DetectLabels(
		ctx context.Context,
		params *awsrekognition.DetectLabelsInput,
		optFns ...func(*awsrekognition.Options),
	) (*awsrekognition.DetectLabelsOutput, error)
}

// Client runs label detection on objects stored in S3.
type Client struct {
	api API
}

// NewClient creates a Rekognition client with static credentials.
func NewClient(region, accessKeyID, secretAccessKey string) *Client {
	api := awsrekognition.New(awsrekognition.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	})
	log.Infof("Rekognition client configured for region %s", region)
	return &Client{api: api}
}

// NewClientWithAPI wraps an existing API implementation.
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// DetectLabels detects labels in bucket/objectName.
func (c *Client) DetectLabels(ctx context.Context, bucket, objectName string, maxLabels int, minConfidence float64) ([]detection.Label, error) {
	out, err := c.api.DetectLabels(ctx, &awsrekognition.DetectLabelsInput{
		Image: &types.Image{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(objectName),
			},
		},
		MaxLabels:     aws.Int32(int32(maxLabels)),
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectLabels on %s/%s: %w", bucket, objectName, err)
	}

	return convertLabels(out.Labels), nil
}

func convertLabels(in []types.Label) []detection.Label {
	labels := make([]detection.Label, 0, len(in))
	for _, l := range in {
		label := detection.Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
			Instances:  make([]detection.Instance, 0, len(l.Instances)),
		}
		for _, inst := range l.Instances {
			i := detection.Instance{Confidence: float64(aws.ToFloat32(inst.Confidence))}
			if bb := inst.BoundingBox; bb != nil {
				i.BoundingBox = detection.BoundingBox{
					Left:   float64(aws.ToFloat32(bb.Left)),
					Top:    float64(aws.ToFloat32(bb.Top)),
					Width:  float64(aws.ToFloat32(bb.Width)),
					Height: float64(aws.ToFloat32(bb.Height)),
				}
			}
			label.Instances = append(label.Instances, i)
		}
		labels = append(labels, label)
	}
	return labels
}

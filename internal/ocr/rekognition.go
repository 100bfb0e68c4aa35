package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog"

	"placa-service/internal/config"
)

type detectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Rekognition reads plate text with AWS Rekognition DetectText and keeps the
// most confident LINE detection.
type Rekognition struct {
	client detectTextAPI
	log    zerolog.Logger
}

func NewRekognition(ctx context.Context, cfg config.OCRConfig, log zerolog.Logger) (*Rekognition, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	log.Info().Str("region", cfg.AWSRegion).Msg("using rekognition for plate text")
	return &Rekognition{
		client: rekognition.NewFromConfig(awsCfg),
		log:    log,
	}, nil
}

func (r *Rekognition) Name() string { return config.OCREngineRekognition }

func (r *Rekognition) Available() bool { return r.client != nil }

// Recognize returns the most confident LINE detection. Plates carry banner
// lines ("BRASIL", state names) that must not be merged into the plate text.
func (r *Rekognition) Recognize(ctx context.Context, img *image.Gray) (string, error) {
	if !r.Available() {
		return "", ErrEngineUnavailable
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: data},
	})
	if err != nil {
		return "", fmt.Errorf("rekognition detect text: %w", err)
	}

	var (
		best       string
		confidence float32
	)
	for _, td := range out.TextDetections {
		if td.Type != types.TextTypesLine {
			continue
		}
		text := aws.ToString(td.DetectedText)
		conf := aws.ToFloat32(td.Confidence)
		r.log.Debug().Str("text", text).Float32("confidence", conf).Msg("rekognition line")
		if text != "" && conf > confidence {
			best, confidence = text, conf
		}
	}

	return best, nil
}

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Archive is a Gateway that keeps full route JSON in an S3 bucket.
// Keys are derived from UUIDs, so conflicts never happen.
type S3Archive struct {
	Bucket string
	Prefix string

	svc         s3iface.S3API
	config      *params.UploadConfig
	routeConfig *params.RouteConfig
	logger      *slog.Logger
}

// NewS3Archive uses the AWS credentials and region from the environment.
// Optional aws.Config values are applied to the session.
func NewS3Archive(bucket string, config *params.UploadConfig, cfgs ...*aws.Config) (*S3Archive, error) {
	if bucket == "" {
		bucket = params.AWS_BUCKETNAME
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 archive: no bucket (AWS_BUCKETNAME)")
	}
	if config == nil {
		config = params.DefaultUploadConfig
	}
	sess, err := session.NewSession(cfgs...)
	if err != nil {
		return nil, err
	}
	return &S3Archive{
		Bucket:      bucket,
		Prefix:      "riderecorder",
		svc:         s3.New(sess),
		config:      config,
		routeConfig: params.DefaultRouteConfig,
		logger:      slog.With("d", "s3"),
	}, nil
}

func (a *S3Archive) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}
	_, err = a.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == request.CanceledErrorCode {
			return fmt.Errorf("s3 put %s canceled: %w", key, err)
		}
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	a.logger.Info("Archived to S3", "bucket", a.Bucket, "key", key)
	return nil
}

func (a *S3Archive) UploadRoute(ctx context.Context, r *route.Route, full bool) error {
	if err := CheckUploadable(r); err != nil {
		return err
	}
	payload, err := NewRoutePayload(r, full, a.routeConfig, a.config.CoordinatePrecision)
	if err != nil {
		return err
	}
	return a.put(ctx, path.Join(a.Prefix, "trips", r.UUID+".json"), payload)
}

func (a *S3Archive) UploadPredictionAggregators(ctx context.Context, aggs []*aggregator.Aggregator) (int, error) {
	for i, agg := range aggs {
		if err := a.put(ctx, path.Join(a.Prefix, "aggregators", agg.ID.String()+".json"), agg); err != nil {
			return i, err
		}
	}
	return len(aggs), nil
}

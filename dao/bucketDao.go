package dao

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/rs/zerolog/log"
)

// EnsureBucket creates the archive bucket within the organization unless it
// already exists.
func EnsureBucket(ctx context.Context, client influxdb2.Client, orgName, bucketName string) error {
	if BucketExists(ctx, client, bucketName) {
		log.Debug().Str("bucket", bucketName).Msg("InfluxDB bucket already exists")
		return nil
	}

	org, err := client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		return fmt.Errorf("finding organization %q: %w", orgName, err)
	}
	if org == nil {
		return fmt.Errorf("organization %q not found", orgName)
	}

	if _, err := client.BucketsAPI().CreateBucketWithName(ctx, org, bucketName); err != nil {
		return fmt.Errorf("creating bucket %q: %w", bucketName, err)
	}

	log.Info().Str("bucket", bucketName).Msg("InfluxDB bucket created")
	return nil
}

// BucketExists checks if a bucket exists in the organization.
func BucketExists(ctx context.Context, client influxdb2.Client, bucketName string) bool {
	_, err := client.BucketsAPI().FindBucketByName(ctx, bucketName)
	return err == nil
}

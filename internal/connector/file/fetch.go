package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"google.golang.org/api/option"

	"github.com/ankaflow/ankaflow/internal/path"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// fetchObject retrieves locator's bytes. Local paths are read directly;
// s3:// and gs:// objects go through the provider SDK using whatever
// credential the scheduler injected for that bucket scope (§4.C's
// scope-by-bucket-URI secret store), falling back to the SDK's ambient
// credential chain when none was injected.
func fetchObject(ctx context.Context, adapter *sqlrt.Adapter, locator string) ([]byte, error) {
	p, err := path.Parse(locator)
	if err != nil {
		return nil, err
	}
	switch p.Scheme {
	case path.SchemeLocal:
		data, err := os.ReadFile(p.Key)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: reading %q: %w", p.Key, err)
		}
		return data, nil
	case path.SchemeS3:
		return fetchS3(ctx, adapter, p)
	case path.SchemeGS:
		return fetchGS(ctx, adapter, p)
	default:
		return nil, fmt.Errorf("ankaflow: cannot fetch object with scheme %q", p.Scheme)
	}
}

// putObject writes data to locator, the sink-side counterpart of
// fetchObject.
func putObject(ctx context.Context, adapter *sqlrt.Adapter, locator string, data []byte) error {
	p, err := path.Parse(locator)
	if err != nil {
		return err
	}
	switch p.Scheme {
	case path.SchemeLocal:
		if err := os.WriteFile(p.Key, data, 0o644); err != nil {
			return fmt.Errorf("ankaflow: writing %q: %w", p.Key, err)
		}
		return nil
	case path.SchemeS3:
		return putS3(ctx, adapter, p, data)
	case path.SchemeGS:
		return putGS(ctx, adapter, p, data)
	default:
		return fmt.Errorf("ankaflow: cannot write object with scheme %q", p.Scheme)
	}
}

func s3Client(adapter *sqlrt.Adapter, p path.Path) (*s3.S3, error) {
	cfg := aws.NewConfig()
	if secret, ok := adapter.Secret(p.Anchor()); ok {
		if region := secret.Config["region"]; region != "" {
			cfg = cfg.WithRegion(region)
		}
		if key := secret.Config["access_key_id"]; key != "" {
			cfg = cfg.WithCredentials(credentials.NewStaticCredentials(
				key, secret.Config["secret_access_key"], secret.Config["session_token"],
			))
		}
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: opening s3 session for %q: %w", p.Anchor(), err)
	}
	return s3.New(sess), nil
}

func fetchS3(ctx context.Context, adapter *sqlrt.Adapter, p path.Path) ([]byte, error) {
	svc, err := s3Client(adapter, p)
	if err != nil {
		return nil, err
	}
	out, err := svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(p.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("ankaflow: fetching s3://%s/%s: %w", p.Bucket, p.Key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: reading s3://%s/%s: %w", p.Bucket, p.Key, err)
	}
	return data, nil
}

func putS3(ctx context.Context, adapter *sqlrt.Adapter, p path.Path, data []byte) error {
	svc, err := s3Client(adapter, p)
	if err != nil {
		return err
	}
	_, err = svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(p.Key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("ankaflow: writing s3://%s/%s: %w", p.Bucket, p.Key, err)
	}
	return nil
}

func gcsClientOptions(adapter *sqlrt.Adapter, p path.Path) []option.ClientOption {
	var opts []option.ClientOption
	secret, ok := adapter.Secret(p.Anchor())
	if !ok {
		return opts
	}
	switch {
	case secret.Config["service_account_json"] != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(secret.Config["service_account_json"])))
	case secret.Config["service_account_path"] != "":
		opts = append(opts, option.WithCredentialsFile(secret.Config["service_account_path"]))
	}
	return opts
}

func fetchGS(ctx context.Context, adapter *sqlrt.Adapter, p path.Path) ([]byte, error) {
	client, err := storage.NewClient(ctx, gcsClientOptions(adapter, p)...)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: opening gcs client for %q: %w", p.Anchor(), err)
	}
	defer client.Close()
	r, err := client.Bucket(p.Bucket).Object(p.Key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: fetching gs://%s/%s: %w", p.Bucket, p.Key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: reading gs://%s/%s: %w", p.Bucket, p.Key, err)
	}
	return data, nil
}

func putGS(ctx context.Context, adapter *sqlrt.Adapter, p path.Path, data []byte) error {
	client, err := storage.NewClient(ctx, gcsClientOptions(adapter, p)...)
	if err != nil {
		return fmt.Errorf("ankaflow: opening gcs client for %q: %w", p.Anchor(), err)
	}
	defer client.Close()
	w := client.Bucket(p.Bucket).Object(p.Key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("ankaflow: writing gs://%s/%s: %w", p.Bucket, p.Key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ankaflow: finalizing gs://%s/%s: %w", p.Bucket, p.Key, err)
	}
	return nil
}

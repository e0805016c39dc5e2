// Package workloads drives I/O against a deployed storage cluster: an
// object benchmark over the S3 endpoint and a staged longevity churn
// built from bulk scale jobs.
package workloads

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hashicorp/go-multierror"
)

// S3Config describes one object workload against an RGW or NooBaa
// endpoint.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	// InsecureTLS skips certificate verification. Routes exposing RGW
	// usually carry the cluster's self-signed certificate.
	InsecureTLS bool

	Buckets          int
	ObjectsPerBucket int
	// ObjectSize in bytes.
	ObjectSize int
	// ReadRatio is the GET fraction of the mixed phase, 0..1.
	ReadRatio float64
	Workers   int
	// Duration bounds the mixed phase by wall clock. When zero,
	// Operations bounds it by op count instead.
	Duration   time.Duration
	Operations int

	BucketPrefix string
}

func (c S3Config) withDefaults() S3Config {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Buckets <= 0 {
		c.Buckets = 1
	}
	if c.ObjectsPerBucket <= 0 {
		c.ObjectsPerBucket = 16
	}
	if c.ObjectSize <= 0 {
		c.ObjectSize = 4096
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Duration <= 0 && c.Operations <= 0 {
		c.Operations = 2 * c.Buckets * c.ObjectsPerBucket
	}
	if c.BucketPrefix == "" {
		c.BucketPrefix = "odfkit-bench"
	}
	return c
}

// Report summarizes one workload run. Individual operation failures are
// counted, not fatal: an endpoint under fault injection is expected to
// drop some requests.
type Report struct {
	Ops     int64
	Bytes   int64
	Errors  int64
	Elapsed time.Duration
}

// OpsPerSec is the achieved operation rate.
func (r Report) OpsPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

func (r Report) String() string {
	return fmt.Sprintf("%d ops (%d failed), %d bytes in %s (%.1f ops/s)",
		r.Ops, r.Errors, r.Bytes, r.Elapsed.Round(time.Millisecond), r.OpsPerSec())
}

// S3Workload is a cosbench-style object workload: Prepare seeds
// buckets and objects, Run drives a mixed PUT/GET load through a
// worker pool, Cleanup empties and removes the buckets.
type S3Workload struct {
	cfg S3Config
	s3  *s3.Client
}

// NewS3Workload builds the workload and its S3 client. RGW and NooBaa
// endpoints are addressed path-style.
func NewS3Workload(workloadCfg S3Config) (*S3Workload, error) {
	workloadCfg = workloadCfg.withDefaults()

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(workloadCfg.AccessKey, workloadCfg.SecretKey, "")),
		config.WithRegion(workloadCfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(workloadCfg.Endpoint)
		o.UsePathStyle = true
		if workloadCfg.InsecureTLS {
			o.HTTPClient = &http.Client{
				Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
			}
		}
	})

	return &S3Workload{cfg: workloadCfg, s3: client}, nil
}

// Prepare creates the buckets and seeds every object slot so the read
// side of the mixed phase always has data to fetch. Buckets that
// already exist and are owned by us are reused.
func (w *S3Workload) Prepare(ctx context.Context) error {
	for i := 0; i < w.cfg.Buckets; i++ {
		name := w.bucketName(i)
		_, err := w.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
		if err != nil && !isBucketAlreadyOwnedByYou(err) {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
	}
	log.Printf("Object workload: %d buckets ready, seeding %d objects of %d bytes each",
		w.cfg.Buckets, w.cfg.Buckets*w.cfg.ObjectsPerBucket, w.cfg.ObjectSize)

	type slot struct{ bucket, key string }
	slots := make(chan slot)

	var mu sync.Mutex
	var errs *multierror.Error
	var wg sync.WaitGroup
	for worker := 0; worker < w.cfg.Workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			payload := randomPayload(w.cfg.ObjectSize, int64(worker))
			for s := range slots {
				if err := w.put(ctx, s.bucket, s.key, payload); err != nil {
					mu.Lock()
					errs = multierror.Append(errs, fmt.Errorf("failed to seed %s/%s: %w", s.bucket, s.key, err))
					mu.Unlock()
				}
			}
		}(worker)
	}

	for i := 0; i < w.cfg.Buckets; i++ {
		for j := 0; j < w.cfg.ObjectsPerBucket; j++ {
			slots <- slot{bucket: w.bucketName(i), key: objectKey(j)}
		}
	}
	close(slots)
	wg.Wait()

	return errs.ErrorOrNil()
}

// Run drives the mixed PUT/GET phase and returns the achieved rates.
// The returned error reflects cancellation only; operation failures
// land in the report.
func (w *S3Workload) Run(ctx context.Context) (Report, error) {
	start := time.Now()

	runCtx := ctx
	budget := int64(w.cfg.Operations)
	if w.cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.Duration)
		defer cancel()
		budget = math.MaxInt64
	}

	var ops, moved, failed atomic.Int64
	var next atomic.Int64
	var wg sync.WaitGroup
	for worker := 0; worker < w.cfg.Workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			payload := randomPayload(w.cfg.ObjectSize, int64(worker))

			for {
				if next.Add(1) > budget || runCtx.Err() != nil {
					return
				}
				bucket := w.bucketName(rng.Intn(w.cfg.Buckets))
				key := objectKey(rng.Intn(w.cfg.ObjectsPerBucket))

				var n int
				var err error
				if rng.Float64() < w.cfg.ReadRatio {
					n, err = w.get(runCtx, bucket, key)
				} else {
					n, err = len(payload), w.put(runCtx, bucket, key, payload)
				}
				if runCtx.Err() != nil && w.cfg.Duration > 0 {
					// The deadline cut this op short, don't count it.
					return
				}
				ops.Add(1)
				if err != nil {
					failed.Add(1)
				} else {
					moved.Add(int64(n))
				}
			}
		}(worker)
	}
	wg.Wait()

	report := Report{Ops: ops.Load(), Bytes: moved.Load(), Errors: failed.Load(), Elapsed: time.Since(start)}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	log.Printf("Object workload finished: %s", report)
	return report, nil
}

// Cleanup empties and deletes every workload bucket. Buckets that are
// already gone are skipped.
func (w *S3Workload) Cleanup(ctx context.Context) error {
	var errs *multierror.Error
	for i := 0; i < w.cfg.Buckets; i++ {
		bucket := w.bucketName(i)
		if err := w.emptyBucket(ctx, bucket); err != nil {
			if isNoSuchBucket(err) {
				continue
			}
			errs = multierror.Append(errs, err)
			continue
		}
		if _, err := w.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil && !isNoSuchBucket(err) {
			errs = multierror.Append(errs, fmt.Errorf("failed to delete bucket %s: %w", bucket, err))
		}
	}
	return errs.ErrorOrNil()
}

func (w *S3Workload) emptyBucket(ctx context.Context, bucket string) error {
	paginator := s3.NewListObjectsV2Paginator(w.s3, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list bucket %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if _, err := w.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key}); err != nil {
				return fmt.Errorf("failed to delete object %s/%s: %w", bucket, *obj.Key, err)
			}
		}
	}
	return nil
}

func (w *S3Workload) put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := w.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

func (w *S3Workload) get(ctx context.Context, bucket, key string) (int, error) {
	out, err := w.s3.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()
	n, err := io.Copy(io.Discard, out.Body)
	return int(n), err
}

func (w *S3Workload) bucketName(i int) string {
	return fmt.Sprintf("%s-%d", w.cfg.BucketPrefix, i)
}

func objectKey(j int) string {
	return fmt.Sprintf("obj-%06d", j)
}

func randomPayload(size int, seed int64) []byte {
	payload := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(payload)
	return payload
}

// isBucketAlreadyOwnedByYou matches both the typed SDK errors and the
// bare API codes S3-compatible gateways return.
func isBucketAlreadyOwnedByYou(err error) bool {
	var owned *s3types.BucketAlreadyOwnedByYou
	var exists *s3types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists"
	}
	return false
}

func isNoSuchBucket(err error) bool {
	var noBucket *s3types.NoSuchBucket
	var notFound *s3types.NotFound
	if errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchBucket" || code == "NotFound"
	}
	return false
}

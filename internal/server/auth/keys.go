package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/dmitrijs2005/gophreview/internal/cryptox"
)

// KeyPair is the process-wide signing keypair. It is loaded once before the
// server starts and never mutated afterwards.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// ObjectGetter is the part of the S3 client used to fetch key objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Settings configures the S3-compatible store key material may live in.
type S3Settings struct {
	User         string
	Password     string
	Region       string
	BaseEndpoint string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Client builds a path-style S3 client for MinIO-like endpoints.
func NewS3Client(ctx context.Context, s S3Settings) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.User, s.Password, "")),
	)
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// IsS3Location reports whether loc is an s3://bucket/key reference.
func IsS3Location(loc string) bool {
	return strings.HasPrefix(loc, "s3://")
}

// LoadKeyPair reads and parses both halves of the keypair. Each location is a
// file path or s3://bucket/key; objects need a non-nil getter. The private
// key must belong to the public key.
//
// Every failure wraps common.ErrKeysUnavailable.
func LoadKeyPair(ctx context.Context, privateLoc, publicLoc string, getter ObjectGetter) (*KeyPair, error) {
	privData, err := readKey(ctx, privateLoc, getter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeysUnavailable, err)
	}
	defer common.WipeByteArray(privData)

	pubData, err := readKey(ctx, publicLoc, getter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeysUnavailable, err)
	}

	priv, err := cryptox.ParsePrivateKey(privData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeysUnavailable, err)
	}
	pub, err := cryptox.ParsePublicKey(pubData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeysUnavailable, err)
	}

	if !cryptox.SameRSAKey(priv, pub) {
		return nil, fmt.Errorf("%w: private key does not match public key", common.ErrKeysUnavailable)
	}

	return &KeyPair{Private: priv, Public: pub}, nil
}

func readKey(ctx context.Context, loc string, getter ObjectGetter) ([]byte, error) {
	if loc == "" {
		return nil, fmt.Errorf("key location not configured")
	}
	if !IsS3Location(loc) {
		b, err := os.ReadFile(loc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", loc, err)
		}
		return b, nil
	}

	if getter == nil {
		return nil, fmt.Errorf("read %s: s3 client not configured", loc)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", loc, err)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("parse %s: want s3://bucket/key", loc)
	}

	out, err := getter.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", loc, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	return b, nil
}

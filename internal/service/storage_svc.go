package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-resty/resty/v2"
)

// DefaultMaxImageBytes Etsy 单张图片上限 20MB
const DefaultMaxImageBytes = 20 << 20

var ErrImageTooLarge = errors.New("image too large")

// ==================== 接口定义 ====================

// ImageData 拉取到的图片
type ImageData struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageSource 按 URL 拉取商品图片
type ImageSource interface {
	Fetch(ctx context.Context, rawURL string) (*ImageData, error)
}

// ==================== 配置 ====================

type StorageConfig struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string // 自定义端点 (MinIO / R2 等)
	UsePathStyle bool
	Timeout      time.Duration
	MaxBytes     int64
}

func (c *StorageConfig) maxBytes() int64 {
	if c.MaxBytes <= 0 {
		return DefaultMaxImageBytes
	}
	return c.MaxBytes
}

// ==================== 工厂方法 ====================

// NewImageSource http(s) 始终可用；配置了 region 或 endpoint 时启用 s3://
func NewImageSource(ctx context.Context, cfg StorageConfig) (*ImageRouter, error) {
	router := &ImageRouter{http: NewHTTPImageSource(cfg)}
	if cfg.Region == "" && cfg.Endpoint == "" {
		return router, nil
	}
	s3Source, err := NewS3ImageSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	router.s3 = s3Source
	return router, nil
}

// ImageRouter 按 scheme 分发
type ImageRouter struct {
	http ImageSource
	s3   ImageSource
}

func (r *ImageRouter) Fetch(ctx context.Context, rawURL string) (*ImageData, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image url %q: %w", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return r.http.Fetch(ctx, rawURL)
	case "s3":
		if r.s3 == nil {
			return nil, errors.New("s3 image source is not configured")
		}
		return r.s3.Fetch(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unsupported image url scheme %q", u.Scheme)
	}
}

// ==================== HTTP 实现 ====================

type HTTPImageSource struct {
	client   *resty.Client
	maxBytes int64
}

func NewHTTPImageSource(cfg StorageConfig) *HTTPImageSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.maxBytes()
	return &HTTPImageSource{
		// 读取时限制大小，超出立即中断
		client:   resty.New().SetTimeout(timeout).SetResponseBodyLimit(int(maxBytes)),
		maxBytes: maxBytes,
	}
}

func (s *HTTPImageSource) Fetch(ctx context.Context, rawURL string) (*ImageData, error) {
	resp, err := s.client.R().SetContext(ctx).Get(rawURL)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrImageTooLarge, s.maxBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download image: HTTP %d", resp.StatusCode())
	}
	return newImageData(rawURL, resp.Header().Get("Content-Type"), resp.Body())
}

// ==================== S3 实现 ====================

type S3ImageSource struct {
	client   *s3.Client
	maxBytes int64
}

func NewS3ImageSource(ctx context.Context, cfg StorageConfig) (*S3ImageSource, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3ImageSource{client: client, maxBytes: cfg.maxBytes()}, nil
}

// parseS3URL s3://bucket/key
func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q", rawURL)
	}
	return bucket, key, nil
}

func (s *S3ImageSource) Fetch(ctx context.Context, rawURL string) (*ImageData, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrImageTooLarge, s.maxBytes)
	}
	return newImageData(rawURL, aws.ToString(out.ContentType), data)
}

// ==================== 工具函数 ====================

func newImageData(rawURL, contentType string, data []byte) (*ImageData, error) {
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("not an image: %s", contentType)
	}
	return &ImageData{
		Filename:    imageFilename(rawURL),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func imageFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image.jpg"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "image.jpg"
	}
	return name
}

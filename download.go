package forensics_fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// A Fetcher is the idempotent single-file download primitive: it ensures a
// destination file exists locally, downloading it at most once.
type Fetcher interface {
	// Fetch ensures dest exists, downloading from url if it does not. The
	// download goes to a temporary file in dest's directory and is renamed
	// into place only on full success, so dest is never observed
	// half-written. An existing dest is a success with downloaded == false
	// and no network activity.
	Fetch(ctx context.Context, url string, dest string) (downloaded bool, err error)
}

type fetcher struct {
	client           *http.Client
	logger           *zap.SugaredLogger
	progressCallback func(downloaded int64, expected int64)
}

func (f *fetcher) Fetch(ctx context.Context, url string, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		f.logger.Infof("Skipping existing file: %s", dest)
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %s: %w", dest, err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	// Temp file lives next to dest so the final rename stays on one
	// filesystem. The uuid keeps interrupted runs from colliding.
	temp := filepath.Join(dir, fmt.Sprintf(".%s.%s.part", filepath.Base(dest), uuid.NewString()))
	if err := f.fetchTemp(ctx, url, temp); err != nil {
		os.Remove(temp)
		return false, fmt.Errorf("download of %s failed: %w", url, err)
	}
	if err := os.Rename(temp, dest); err != nil {
		os.Remove(temp)
		return false, fmt.Errorf("failed to finalize %s: %w", dest, err)
	}
	return true, nil
}

func (f *fetcher) fetchTemp(ctx context.Context, url string, temp string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	// Progress state is scoped to this one call.
	p := &progress{callback: f.progressCallback}
	if resp.ContentLength > 0 {
		p.addExpected(resp.ContentLength)
	}
	_, err = io.Copy(io.MultiWriter(out, p), &readerContext{ctx: ctx, r: resp.Body})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return nil
}

// progress tracks one download and forwards byte counts to the callback. It
// sits last in the io.MultiWriter so failed writes are never counted.
type progress struct {
	callback   func(downloaded int64, expected int64)
	downloaded int64
	expected   int64
}

func (p *progress) addExpected(n int64) {
	p.expected += n
	if p.callback != nil {
		p.callback(p.downloaded, p.expected)
	}
}

func (p *progress) Write(b []byte) (int, error) {
	n := len(b)
	p.downloaded += int64(n)
	if p.callback != nil {
		p.callback(p.downloaded, p.expected)
	}
	return n, nil
}

// A context-aware io.Reader wrapper, so cancelling the context interrupts an
// in-flight copy.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// NewInsecureClient returns an http.Client that skips TLS certificate
// verification. The dataset mirrors serve certificates that do not validate,
// so this is the Fetcher default; use FetcherBuilder.WithHTTPClient to
// restore standard verification.
func NewInsecureClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &http.Client{Transport: transport}
}

type FetcherBuilder interface {
	Build() Fetcher
	WithHTTPClient(client *http.Client) FetcherBuilder
	WithLogger(logger *zap.Logger) FetcherBuilder
	WithProgressCallback(f func(downloaded int64, expected int64)) FetcherBuilder
}

type fetcherBuilder struct {
	client           *http.Client
	logger           *zap.Logger
	progressCallback func(int64, int64)
}

func NewFetcherBuilder() FetcherBuilder {
	return &fetcherBuilder{}
}

func (b *fetcherBuilder) Build() Fetcher {
	f := fetcher{
		client:           b.client,
		progressCallback: b.progressCallback,
	}
	if f.client == nil {
		f.client = NewInsecureClient()
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	f.logger = logger.Sugar()
	return &f
}

func (b *fetcherBuilder) WithHTTPClient(client *http.Client) FetcherBuilder {
	b.client = client
	return b
}

func (b *fetcherBuilder) WithLogger(logger *zap.Logger) FetcherBuilder {
	b.logger = logger
	return b
}

func (b *fetcherBuilder) WithProgressCallback(f func(downloaded int64, expected int64)) FetcherBuilder {
	b.progressCallback = f
	return b
}

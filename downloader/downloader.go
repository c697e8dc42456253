// Package downloader turns a list of catalogued products into local archives.
// Products are fetched concurrently by a bounded pool of workers, each through
// the download service registered for its satellite. A download is streamed to
// a temporary file, verified, and atomically renamed: a crash never leaves a
// partial archive under the final name.
package downloader

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mholt/archiver"
	"golang.org/x/sync/errgroup"

	"github.com/geoharvest/geoharvest/catalog"
	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/interface/provider"
	"github.com/geoharvest/geoharvest/service"
	"github.com/geoharvest/geoharvest/service/log"
)

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
)

type Options struct {
	OutputDir string
	// Workers bounds the number of concurrent downloads (default 4)
	Workers int
	// MaxAttempts bounds the retries of temporary failures (default 3)
	MaxAttempts int
	// Overwrite forces a new download even when the archive is already there
	Overwrite bool
	// Extract unpacks the archive next to it after the download
	Extract bool
	// BackoffBase is the delay before the first retry, doubled at each attempt
	BackoffBase time.Duration
	// Provider forces all the downloads through the given service instead of
	// the default service of each satellite. Mirrors are ignored when set.
	Provider string
	// Mirrors are services tried, in order, before the default service of
	// each satellite
	Mirrors []string
}

// ProviderRegistry finds the download service registered under a name
type ProviderRegistry interface {
	Get(name string) (provider.ImageProvider, error)
}

type Downloader struct {
	Registry ProviderRegistry
	Options  Options
}

func NewDownloader(registry ProviderRegistry, options Options) *Downloader {
	if options.Workers <= 0 {
		options.Workers = defaultWorkers
	}
	if options.MaxAttempts <= 0 {
		options.MaxAttempts = defaultMaxAttempts
	}
	if options.BackoffBase <= 0 {
		options.BackoffBase = defaultBackoffBase
	}
	return &Downloader{Registry: registry, Options: options}
}

// Download fetches all the products and returns the report of the run.
// A failed product never aborts its siblings: the error only reports that some
// tasks did not succeed, task by task details are in the report.
func (d *Downloader) Download(ctx context.Context, products []common.Product) (Report, error) {
	if err := os.MkdirAll(d.Options.OutputDir, 0766); err != nil {
		return Report{}, fmt.Errorf("Download.MkdirAll: %w", err)
	}

	tasks := make([]*Task, len(products))
	for i, product := range products {
		tasks[i] = d.newTask(product)
	}

	wg := errgroup.Group{}
	wg.SetLimit(d.Options.Workers)
	for _, task := range tasks {
		if task.Status.Terminal() {
			continue
		}
		wg.Go(func() error {
			d.runTask(ctx, task)
			return nil
		})
	}
	wg.Wait()

	report := Report{Tasks: tasks}
	if report.Failed() {
		return report, fmt.Errorf("Download: %d/%d products failed", report.Count(common.StatusFAILED), len(tasks))
	}
	return report, nil
}

func (d *Downloader) newTask(product common.Product) *Task {
	task := &Task{
		Product: product,
		Path:    filepath.Join(d.Options.OutputDir, archiveName(product)),
		Status:  common.StatusPENDING,
	}

	if d.Options.Provider != "" {
		task.Provider = d.Options.Provider
		return task
	}

	spec, err := catalog.Resolve(entities.SatelliteLevel{
		Constellation: common.GetConstellationFromString(product.Constellation),
		Level:         product.Level,
	})
	if err != nil {
		task.Status, task.Err = common.StatusFAILED, err
		return task
	}
	task.Provider = spec.DownloadProvider
	return task
}

func archiveName(product common.Product) string {
	if product.Filename != "" {
		return filepath.Base(product.Filename)
	}
	return product.ID + ".zip"
}

func (d *Downloader) runTask(ctx context.Context, task *Task) {
	defer func() {
		if task.Err != nil && task.Status == common.StatusFAILED {
			log.Logger(ctx).Sugar().Errorf("%s: %v", task.Product.ID, task.Err)
		}
	}()

	if ctx.Err() != nil {
		task.Status, task.Err = common.StatusCANCELLED, ctx.Err()
		return
	}

	// Already there and intact: nothing to do
	if !d.Options.Overwrite {
		if info, err := os.Stat(task.Path); err == nil {
			if task.Product.SizeBytes <= 0 || info.Size() == task.Product.SizeBytes {
				log.Logger(ctx).Sugar().Infof("%s: already downloaded", task.Product.ID)
				task.Status = common.StatusSKIPPED
				return
			}
			log.Logger(ctx).Sugar().Warnf("%s: size mismatch on the existing archive (%d instead of %d bytes), downloading again",
				task.Product.ID, info.Size(), task.Product.SizeBytes)
		}
	}

	services, err := d.services(task.Provider)
	if err != nil {
		task.Status, task.Err = common.StatusFAILED, err
		return
	}

	task.Status = common.StatusINFLIGHT
	tmpPath := fmt.Sprintf("%s.%s.part", task.Path, uuid.New().String()[0:8])
	defer os.Remove(tmpPath)

	for task.Attempts = 1; ; task.Attempts++ {
		err = d.fetch(ctx, services, task, tmpPath)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			task.Status, task.Err = common.StatusCANCELLED, err
			return
		}
		if !service.Temporary(err) || task.Attempts >= d.Options.MaxAttempts {
			task.Status, task.Err = common.StatusFAILED, err
			return
		}
		delay := backoff(d.Options.BackoffBase, task.Attempts)
		log.Logger(ctx).Sugar().Warnf("%s: attempt %d/%d failed (%v), retrying in %v",
			task.Product.ID, task.Attempts, d.Options.MaxAttempts, err, delay)
		select {
		case <-ctx.Done():
			task.Status, task.Err = common.StatusCANCELLED, ctx.Err()
			return
		case <-time.After(delay):
		}
	}

	if d.Options.Extract {
		if err := d.extract(ctx, task.Path); err != nil {
			task.Status, task.Err = common.StatusFAILED, err
			return
		}
	}

	task.Status = common.StatusDONE
	log.Logger(ctx).Sugar().Infof("%s: downloaded to %s", task.Product.ID, task.Path)
}

// services resolves the chain of download services of a task: the configured
// mirrors first, then the service bound to the satellite. A mirror that does
// not resolve is skipped, as long as at least one service of the chain does.
func (d *Downloader) services(defaultProvider string) ([]provider.ImageProvider, error) {
	names := []string{defaultProvider}
	if d.Options.Provider == "" {
		names = append(append([]string{}, d.Options.Mirrors...), defaultProvider)
	}

	var services []provider.ImageProvider
	var err error
	for _, name := range names {
		ip, e := d.Registry.Get(name)
		if e != nil {
			err = service.MergeErrors(true, err, e)
			continue
		}
		services = append(services, ip)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("services: %w", err)
	}
	return services, nil
}

// fetch downloads the product to tmpPath through the first service of the
// chain that delivers it, verifies it and moves it to its final name
func (d *Downloader) fetch(ctx context.Context, services []provider.ImageProvider, task *Task, tmpPath string) error {
	var err error
	for _, imageProvider := range services {
		e := imageProvider.Download(ctx, task.Product, tmpPath)
		if e != nil {
			os.Remove(tmpPath)
			e = fmt.Errorf("fetch[%s].%w", imageProvider.Name(), e)
		}
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
	}
	if err != nil {
		return err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("fetch.Stat: %w", err))
	}
	// An advertised size must match exactly, else the archive is truncated or
	// corrupted. Without an advertised size any non-empty stream is accepted.
	if task.Product.SizeBytes > 0 && info.Size() != task.Product.SizeBytes {
		os.Remove(tmpPath)
		return service.MakeTemporary(fmt.Errorf("fetch: size mismatch: %d instead of %d bytes", info.Size(), task.Product.SizeBytes))
	}
	if task.Product.SizeBytes <= 0 && info.Size() == 0 {
		os.Remove(tmpPath)
		return service.MakeTemporary(fmt.Errorf("fetch: empty archive"))
	}

	if err := os.Rename(tmpPath, task.Path); err != nil {
		return fmt.Errorf("fetch.Rename: %w", err)
	}
	return nil
}

// extract unpacks the archive next to it, keeping the archive so that a later
// run still skips the download
func (d *Downloader) extract(ctx context.Context, archivePath string) error {
	tmpdir, err := os.MkdirTemp(filepath.Dir(archivePath), filepath.Base(archivePath))
	if err != nil {
		return fmt.Errorf("extract.MkdirTemp: %w", err)
	}
	defer os.RemoveAll(tmpdir)
	if err := archiver.Unarchive(archivePath, tmpdir); err != nil {
		return fmt.Errorf("extract.Unarchive: %w", err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return fmt.Errorf("extract.ReadDir: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("extract: empty archive")
	}
	for _, f := range files {
		if err := os.Rename(filepath.Join(tmpdir, f.Name()), filepath.Join(filepath.Dir(archivePath), f.Name())); err != nil {
			return fmt.Errorf("extract.Rename: %w", err)
		}
	}
	return nil
}

// backoff returns the delay before the given retry, doubled at each attempt
// with a random jitter to avoid thundering herds
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	return delay + time.Duration(rand.Int63n(int64(delay)/2+1))
}

package downloader_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/downloader"
	"github.com/geoharvest/geoharvest/interface/provider"
	"github.com/geoharvest/geoharvest/service"
)

// fakeProvider writes content to the requested path, failing the first
// failures calls with a temporary error
type fakeProvider struct {
	name      string
	content   []byte
	failures  int
	permanent bool

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()

	if f.permanent {
		return fmt.Errorf("invalid credentials")
	}
	if calls <= f.failures {
		return service.MakeTemporary(fmt.Errorf("connection reset"))
	}
	return os.WriteFile(localPath, f.content, 0644)
}

type fakeRegistry map[string]provider.ImageProvider

func (r fakeRegistry) Get(name string) (provider.ImageProvider, error) {
	if p, ok := r[name]; ok {
		return p, nil
	}
	return nil, service.MakeFatal(fmt.Errorf("no credential found for %s", name))
}

var _ = Describe("Downloader", func() {
	var (
		outputDir string
		asf       *fakeProvider
		registry  fakeRegistry
		options   downloader.Options
		product   common.Product
	)

	BeforeEach(func() {
		var err error
		outputDir, err = os.MkdirTemp("", "downloader")
		Expect(err).NotTo(HaveOccurred())

		asf = &fakeProvider{name: common.ProviderASF, content: []byte("archive-bytes")}
		registry = fakeRegistry{common.ProviderASF: asf}
		options = downloader.Options{
			OutputDir:   outputDir,
			Workers:     2,
			MaxAttempts: 3,
			BackoffBase: time.Millisecond,
		}
		product = common.Product{
			ID:            "S1B_IW_GRDH_1SDV_20211126T171914_20211126T171939_029775_038DC2_F279",
			Constellation: "SENTINEL1",
			Level:         "L1",
			Provider:      common.ProviderCopernicus,
			SizeBytes:     int64(len("archive-bytes")),
			Filename:      "S1B_IW_GRDH_1SDV_20211126T171914_20211126T171939_029775_038DC2_F279.zip",
		}
	})

	AfterEach(func() {
		os.RemoveAll(outputDir)
	})

	download := func(products ...common.Product) (downloader.Report, error) {
		return downloader.NewDownloader(registry, options).Download(context.Background(), products)
	}

	noPartFiles := func() {
		entries, err := os.ReadDir(outputDir)
		Expect(err).NotTo(HaveOccurred())
		for _, entry := range entries {
			Expect(strings.Contains(entry.Name(), ".part")).To(BeFalse(), "leftover temporary file: "+entry.Name())
		}
	}

	It("downloads a product to its final name", func() {
		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))

		content, err := os.ReadFile(filepath.Join(outputDir, product.Filename))
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(Equal(asf.content))
		noPartFiles()
	})

	It("skips a product already downloaded with the right size", func() {
		Expect(os.WriteFile(filepath.Join(outputDir, product.Filename), asf.content, 0644)).To(Succeed())

		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusSKIPPED)).To(Equal(1))
		Expect(asf.calls).To(Equal(0))
	})

	It("downloads again a truncated archive", func() {
		Expect(os.WriteFile(filepath.Join(outputDir, product.Filename), []byte("trunc"), 0644)).To(Succeed())

		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))
		Expect(asf.calls).To(Equal(1))
	})

	It("downloads again when overwrite is forced", func() {
		Expect(os.WriteFile(filepath.Join(outputDir, product.Filename), asf.content, 0644)).To(Succeed())
		options.Overwrite = true

		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))
		Expect(asf.calls).To(Equal(1))
	})

	It("retries temporary failures", func() {
		asf.failures = 2

		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))
		Expect(report.Tasks[0].Attempts).To(Equal(3))
	})

	It("fails after the attempts are exhausted", func() {
		asf.failures = 10

		report, err := download(product)
		Expect(err).To(HaveOccurred())
		Expect(report.Count(common.StatusFAILED)).To(Equal(1))
		Expect(asf.calls).To(Equal(3))
		_, statErr := os.Stat(filepath.Join(outputDir, product.Filename))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
		noPartFiles()
	})

	It("does not retry permanent failures", func() {
		asf.permanent = true

		report, err := download(product)
		Expect(err).To(HaveOccurred())
		Expect(report.Count(common.StatusFAILED)).To(Equal(1))
		Expect(asf.calls).To(Equal(1))
	})

	It("rejects a corrupted archive and leaves no final file", func() {
		product.SizeBytes = 999999

		report, err := download(product)
		Expect(err).To(HaveOccurred())
		Expect(report.Count(common.StatusFAILED)).To(Equal(1))
		_, statErr := os.Stat(filepath.Join(outputDir, product.Filename))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
		noPartFiles()
	})

	It("isolates the failure of one product", func() {
		second := product
		second.ID = "S1B_IW_GRDH_1SDV_20211127T171914_20211127T171939_029789_038DC2_A001"
		second.Filename = second.ID + ".zip"
		second.Constellation = "SENTINEL3"
		second.Level = "L1"
		// no cmr provider in the registry: the second product fails

		report, err := download(product, second)
		Expect(err).To(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))
		Expect(report.Count(common.StatusFAILED)).To(Equal(1))
	})

	It("routes every product through the forced provider", func() {
		mirror := &fakeProvider{name: common.ProviderLocal, content: asf.content}
		registry[common.ProviderLocal] = mirror
		options.Provider = common.ProviderLocal

		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))
		Expect(asf.calls).To(Equal(0))
		Expect(mirror.calls).To(Equal(1))
	})

	It("falls back to the default service when a mirror fails", func() {
		mirror := &fakeProvider{name: common.ProviderLocal, permanent: true}
		registry[common.ProviderLocal] = mirror
		options.Mirrors = []string{common.ProviderLocal}

		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))
		Expect(mirror.calls).To(Equal(1))
		Expect(asf.calls).To(Equal(1))
	})

	It("skips an unconfigured mirror", func() {
		options.Mirrors = []string{common.ProviderGS}

		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusDONE)).To(Equal(1))
		Expect(asf.calls).To(Equal(1))
	})

	It("cancels the pending tasks", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := downloader.NewDownloader(registry, options).Download(ctx, []common.Product{product})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Count(common.StatusCANCELLED)).To(Equal(1))
		Expect(asf.calls).To(Equal(0))
	})

	It("reports a per-satellite summary", func() {
		report, err := download(product)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Summary()).To(ContainSubstring("SENTINEL1: 1 DONE"))
	})
})

package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/service"
	"github.com/geoharvest/geoharvest/service/log"
)

// FTPImageProvider implements ImageProvider for connection to FTP
type FTPImageProvider struct {
	host        string
	pathPattern string
	user        string
	pword       string
	tls         bool
}

// Name implements ImageProvider
func (ip *FTPImageProvider) Name() string {
	return common.ProviderFTP
}

// NewFTPImageProvider creates a new ImageProvider for ftp download link
// Example:
// pathPattern: full ftp path, including host, port and folder tree,
// i.e. ftp://ftp.example.org:21/Images/{SCENE}.zip (see common.FormatBrackets)
func NewFTPImageProvider(pathPattern, user, pword string) *FTPImageProvider {
	pathPattern = strings.TrimPrefix(pathPattern, "ftp://")
	splits := strings.SplitN(pathPattern, "/", 2)
	if len(splits) == 1 {
		splits = append(splits, "{SCENE}.zip")
	}
	splitHost := strings.SplitN(splits[0], ":", 2)
	tls := len(splitHost) == 2 && splitHost[1] == "990"

	return &FTPImageProvider{
		host:        splits[0],
		tls:         tls,
		pathPattern: splits[1],
		user:        user,
		pword:       pword,
	}
}

// writeCounter counts the bytes written to it and logs the progress every 5%
type writeCounter struct {
	ctx     context.Context
	prefix  string
	total   int64
	written int64
	next    float64
}

func (wc *writeCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.written += int64(n)
	if wc.total > 0 {
		if progress := float64(wc.written) / float64(wc.total); progress >= wc.next {
			log.Logger(wc.ctx).Sugar().Debugf("%s: %.2f%% %s/%s", wc.prefix, 100*progress, fmtBytes(wc.written), fmtBytes(wc.total))
			wc.next = progress + 0.05
		}
	}
	return n, nil
}

// Download implements ImageProvider
func (ip *FTPImageProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	format, err := common.Info(product.ID)
	if err != nil {
		return fmt.Errorf("FTPImageProvider: %w", err)
	}

	path := common.FormatBrackets(ip.pathPattern, format)

	// Connection to FTP
	ftpOption := []ftp.DialOption{ftp.DialWithContext(ctx), ftp.DialWithTimeout(5 * time.Second)}
	if ip.tls {
		ftpOption = append(ftpOption, ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := ftp.Dial(ip.host, ftpOption...)
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("FTPImageProvider.Dial: %w", err))
	}

	if err = c.Login(ip.user, ip.pword); err != nil {
		return service.MakeFatal(fmt.Errorf("FTPImageProvider.Login: %w", err))
	}
	defer c.Quit()

	// Get file size
	size, _ := c.FileSize(path)

	// Get file stream
	r, err := c.Retr(path)
	if err != nil {
		return ErrProductNotFound{Product: path}
	}
	defer r.Close()

	// Download to local file
	dest, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("FTPImageProvider.Create: %w", err)
	}
	defer dest.Close()

	counter := &writeCounter{ctx: ctx, prefix: ip.Name() + ":" + product.ID, total: size}
	if _, err = io.Copy(dest, io.TeeReader(r, counter)); err != nil {
		os.Remove(localPath)
		return service.MakeTemporary(fmt.Errorf("FTPImageProvider.Copy: %w", err))
	}
	return nil
}

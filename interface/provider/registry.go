package provider

import (
	"fmt"
	"sync"

	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/interface/credentials"
)

// Registry creates and caches the download services, resolving their
// credentials on first use. A service whose credentials cannot be resolved is
// unavailable, but the others are unaffected.
type Registry struct {
	Resolver credentials.Resolver

	// Optional mirrors
	LocalPath       string
	FTPPattern      string
	GSBuckets       map[string][]string
	S3Buckets       map[string][]string
	S3Region        string
	S3RequesterPays bool

	mu        sync.Mutex
	providers map[string]ImageProvider
	errs      map[string]error
}

// Get returns the download service registered under name.
// The result, failure included, is memoized: credentials are resolved once.
func (r *Registry) Get(name string) (ImageProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = map[string]ImageProvider{}
		r.errs = map[string]error{}
	}
	if provider, ok := r.providers[name]; ok {
		return provider, nil
	}
	if err, ok := r.errs[name]; ok {
		return nil, err
	}

	provider, err := r.create(name)
	if err != nil {
		r.errs[name] = err
		return nil, err
	}
	r.providers[name] = provider
	return provider, nil
}

func (r *Registry) create(name string) (ImageProvider, error) {
	switch name {
	case common.ProviderCopernicus:
		user, err := r.Resolver.Resolve(credentials.CopernicusUsername)
		if err != nil {
			return nil, fmt.Errorf("registry[%s]: %w", name, err)
		}
		pword, err := r.Resolver.Resolve(credentials.CopernicusPassword)
		if err != nil {
			return nil, fmt.Errorf("registry[%s]: %w", name, err)
		}
		return NewCopernicusImageProvider(user, pword), nil

	case common.ProviderASF:
		token, err := r.Resolver.Resolve(credentials.EarthdataToken)
		if err != nil {
			return nil, fmt.Errorf("registry[%s]: %w", name, err)
		}
		return NewASFImageProvider(token), nil

	case common.ProviderCMR:
		token, err := r.Resolver.Resolve(credentials.EarthdataToken)
		if err != nil {
			return nil, fmt.Errorf("registry[%s]: %w", name, err)
		}
		return NewCMRImageProvider(token), nil

	case common.ProviderGS:
		if len(r.GSBuckets) == 0 {
			return nil, fmt.Errorf("registry[%s]: no bucket configured", name)
		}
		ip := NewGSImageProvider()
		for constellation, buckets := range r.GSBuckets {
			for _, bucket := range buckets {
				if err := ip.AddBucket(constellation, bucket); err != nil {
					return nil, fmt.Errorf("registry[%s]: %w", name, err)
				}
			}
		}
		return ip, nil

	case common.ProviderS3:
		if len(r.S3Buckets) == 0 {
			return nil, fmt.Errorf("registry[%s]: no bucket configured", name)
		}
		// Keys are optional: the AWS default chain applies when unset
		accessKeyID, _ := r.Resolver.Resolve(credentials.AWSAccessKeyID)
		secretAccessKey, _ := r.Resolver.Resolve(credentials.AWSSecretAccessKey)
		ip := NewS3ImageProvider(accessKeyID, secretAccessKey, r.S3Region, r.S3RequesterPays)
		for constellation, buckets := range r.S3Buckets {
			for _, bucket := range buckets {
				if err := ip.AddBucket(constellation, bucket); err != nil {
					return nil, fmt.Errorf("registry[%s]: %w", name, err)
				}
			}
		}
		return ip, nil

	case common.ProviderFTP:
		if r.FTPPattern == "" {
			return nil, fmt.Errorf("registry[%s]: no path pattern configured", name)
		}
		user, _ := r.Resolver.Resolve(credentials.FTPUsername)
		pword, _ := r.Resolver.Resolve(credentials.FTPPassword)
		return NewFTPImageProvider(r.FTPPattern, user, pword), nil

	case common.ProviderLocal:
		if r.LocalPath == "" {
			return nil, fmt.Errorf("registry[%s]: no path configured", name)
		}
		return NewLocalImageProvider(r.LocalPath), nil
	}
	return nil, fmt.Errorf("registry: no such provider: %s", name)
}

package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"sync"
	"time"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/config"
	"github.com/mpapenbr/trackline/pkg/utils"
)

type certs struct {
	ctx       context.Context
	tlsconfig *tls.Config
	log       *log.Logger
	cert      *tls.Certificate
	mu        sync.RWMutex
}

// newTLSConfigProvider returns nil if no cert is configured. Otherwise the
// cert files are watched and reloaded on change.
func newTLSConfigProvider(ctx context.Context) *tls.Config {
	c := &certs{
		ctx: ctx,
		log: log.GetFromContext(ctx).Named("server.certs"),
	}
	c.loadCert()
	if c.cert == nil {
		return nil
	}
	c.tlsconfig = &tls.Config{
		GetCertificate: func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return c.cert, nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if config.TLSCAFile != "" {
		c.log.Info("Loading ca cert", log.String("file", config.TLSCAFile))
		caCertPool := x509.NewCertPool()
		if caCert, err := os.ReadFile(config.TLSCAFile); err != nil {
			c.log.Error("could not read TLS root CA", log.ErrorField(err))
		} else if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
			c.log.Error("could not append cert to pool")
		}
		c.tlsconfig.ClientCAs = caCertPool
		c.tlsconfig.ClientAuth = tls.VerifyClientCertIfGiven
	}
	go func() {
		err := utils.WatchFiles(ctx, c.log,
			[]string{config.TLSCertFile, config.TLSKeyFile},
			time.Second,
			func(name string) {
				c.log.Info("cert file changed, reloading cert", log.String("file", name))
				c.loadCert()
			})
		if err != nil {
			c.log.Error("could not watch cert files", log.ErrorField(err))
		}
	}()
	return c.tlsconfig
}

func (c *certs) loadCert() {
	if config.TLSCertFile == "" || config.TLSKeyFile == "" {
		return
	}
	c.log.Info("Loading cert",
		log.String("key", config.TLSKeyFile),
		log.String("cert", config.TLSCertFile))
	cert, err := tls.LoadX509KeyPair(config.TLSCertFile, config.TLSKeyFile)
	if err != nil {
		c.log.Error("could not load TLS key pair", log.ErrorField(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
}

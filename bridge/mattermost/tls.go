package mattermost

import (
	"crypto/tls"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
)

// keypairReloader holds a client certificate that is reloaded from disk on
// SIGHUP. A certificate that fails to load keeps the old one in place.
type keypairReloader struct {
	certMu   sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
	sigs     chan os.Signal
}

func newKeypairReloader(certPath, keyPath string) (*keypairReloader, error) {
	result := &keypairReloader{
		certPath: certPath,
		keyPath:  keyPath,
		sigs:     make(chan os.Signal, 1),
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading client certificate")
	}

	result.cert = &cert

	signal.Notify(result.sigs, syscall.SIGHUP)

	go func() {
		for range result.sigs {
			logger.Infof("received SIGHUP, reloading TLS certificate and key from %q and %q", certPath, keyPath)
			if err := result.maybeReload(); err != nil {
				logger.Errorf("keeping old TLS certificate because the new one could not be loaded: %v", err)
			}
		}
	}()

	return result, nil
}

func (kpr *keypairReloader) maybeReload() error {
	newCert, err := tls.LoadX509KeyPair(kpr.certPath, kpr.keyPath)
	if err != nil {
		return err
	}

	kpr.certMu.Lock()
	defer kpr.certMu.Unlock()

	kpr.cert = &newCert

	return nil
}

func (kpr *keypairReloader) certificate() *tls.Certificate {
	kpr.certMu.RLock()
	defer kpr.certMu.RUnlock()

	return kpr.cert
}

// GetClientCertificateFunc plugs the reloader into a tls.Config.
func (kpr *keypairReloader) GetClientCertificateFunc() func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
		return kpr.certificate(), nil
	}
}

func (kpr *keypairReloader) stop() {
	signal.Stop(kpr.sigs)
	close(kpr.sigs)
}

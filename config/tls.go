package config

import (
	"crypto/tls"
)

type TLSClientOptions struct {
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
}

func (to *TLSClientOptions) ToTLSConfig() *tls.Config {
	certs := make([]tls.Certificate, 0)
	if len(to.CertFile) > 0 && len(to.KeyFile) > 0 {
		cert, err := tls.LoadX509KeyPair(to.CertFile, to.KeyFile)
		if err != nil {
			log.Panic(err)
		}
		certs = append(certs, cert)
	}

	return &tls.Config{
		Certificates:       certs,
		InsecureSkipVerify: true,
	}
}

// TLSServerOptions enables https on the node API when both files are set.
type TLSServerOptions struct {
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
}

func (to *TLSServerOptions) Enabled() bool {
	return to != nil && len(to.CertFile) > 0 && len(to.KeyFile) > 0
}

package localca

import (
	"crypto/x509"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// EncodeTrustBundle packages certificates into a password-less PKCS12
// trust store suitable for import into platform trust stores. No
// private key material is included.
func EncodeTrustBundle(certificates ...*x509.Certificate) ([]byte, error) {
	return pkcs12.Passwordless.EncodeTrustStore(certificates, "")
}

// DecodeTrustBundle extracts the certificates from a password-less
// PKCS12 trust store.
func DecodeTrustBundle(data []byte) ([]*x509.Certificate, error) {
	return pkcs12.DecodeTrustStore(data, "")
}

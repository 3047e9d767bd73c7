package localca

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"

	"github.com/youmark/pkcs8"
)

const (
	pemTypeCertificate  = "CERTIFICATE"
	pemTypeCSR          = "CERTIFICATE REQUEST"
	pemTypePrivKey      = "PRIVATE KEY"
	pemTypeEncryptedKey = "ENCRYPTED PRIVATE KEY"
)

var (
	ErrInvalidEncodingPEM = errors.New("local-ca: invalid PEM encoding")
	ErrInvalidPassword    = errors.New("local-ca: invalid private key password")
	ErrInvalidPrivateKey  = errors.New("local-ca: invalid private key")
)

// EncodePEM encodes certificate DER to PEM form
func EncodePEM(derCert []byte) ([]byte, error) {
	caPEM := new(bytes.Buffer)
	err := pem.Encode(caPEM, &pem.Block{
		Type:  pemTypeCertificate,
		Bytes: derCert,
	})
	if err != nil {
		return nil, err
	}
	return caPEM.Bytes(), nil
}

// DecodePEM decodes a PEM encoded certificate
func DecodePEM(bytes []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(bytes)
	if block == nil {
		return nil, ErrInvalidEncodingPEM
	}
	return x509.ParseCertificate(block.Bytes)
}

// EncodeCSR encodes a certificate signing request DER to PEM form
func EncodeCSR(derCSR []byte) ([]byte, error) {
	csrPEM := new(bytes.Buffer)
	err := pem.Encode(csrPEM, &pem.Block{
		Type:  pemTypeCSR,
		Bytes: derCSR,
	})
	if err != nil {
		return nil, err
	}
	return csrPEM.Bytes(), nil
}

// DecodeCSR decodes a PEM encoded certificate signing request
func DecodeCSR(bytes []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(bytes)
	if block == nil {
		return nil, ErrInvalidEncodingPEM
	}
	return x509.ParseCertificateRequest(block.Bytes)
}

// EncodePrivKey encodes a private key to ASN.1 DER PKCS8 form,
// encrypted under password when one is provided
func EncodePrivKey(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	return pkcs8.MarshalPrivateKey(privateKey, password, nil)
}

// EncodePrivKeyPEM encodes PKCS8 DER bytes to PEM form
func EncodePrivKeyPEM(der []byte, isEncrypted bool) ([]byte, error) {
	keyType := pemTypePrivKey
	if isEncrypted {
		keyType = pemTypeEncryptedKey
	}
	privKeyPEM := new(bytes.Buffer)
	err := pem.Encode(privKeyPEM, &pem.Block{
		Type:  keyType,
		Bytes: der,
	})
	if err != nil {
		return nil, err
	}
	return privKeyPEM.Bytes(), nil
}

// ParsePrivateKey parses a PKCS8 private key from DER bytes,
// decrypting with password when one is provided
func ParsePrivateKey(bytes, password []byte) (crypto.PrivateKey, error) {
	var err error
	var privKeyAny any
	// First, try parsing PKCS8 encrypted private key
	if password != nil {
		privKeyAny, err = pkcs8.ParsePKCS8PrivateKey(bytes, password)
		if err != nil {
			if strings.Contains(err.Error(), "asn1: structure error: tags don't match") {
				return nil, ErrInvalidPassword
			}
			if strings.Compare(err.Error(), "pkcs8: incorrect password") == 0 {
				return nil, ErrInvalidPassword
			}
			return nil, ErrInvalidPrivateKey
		}
		return privKeyAny, nil
	}
	// Next, raw DER PKCS8
	privKeyAny, err = x509.ParsePKCS8PrivateKey(bytes)
	if err != nil {
		// ... finally, PKCS1
		privKeyAny, err = x509.ParsePKCS1PrivateKey(bytes)
		if err != nil {
			return nil, ErrInvalidPrivateKey
		}
	}
	return privKeyAny, nil
}

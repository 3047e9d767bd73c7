package localca

import (
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"testing"
	"time"

	"github.com/jeremyhahn/go-localca/pkg/logging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

var testPassphrase = []byte("test-passphrase")

func testCA(config *Config) (*CA, *Store) {
	logger := logging.DefaultLogger()
	store := NewStore(logger, afero.NewMemMapFs(), config.Home)
	return NewCA(logger, config, store, rand.Reader), store
}

func TestCAInit(t *testing.T) {

	config := testConfig()
	ca, store := testCA(config)
	assert.Nil(t, store.Initialize())

	certificate, err := ca.Init(testPassphrase)
	assert.Nil(t, err)

	// self-signed under the CA profile
	assert.True(t, certificate.IsCA)
	assert.True(t, certificate.BasicConstraintsValid)
	assert.Equal(t, x509.KeyUsageCertSign, certificate.KeyUsage)
	assert.Equal(t, certificate.Subject.String(), certificate.Issuer.String())
	assert.Nil(t, certificate.CheckSignatureFrom(certificate))
	assert.Equal(t, certificate.SubjectKeyId, certificate.AuthorityKeyId)
	assert.True(t, certificate.NotAfter.Equal(
		certificate.NotBefore.AddDate(config.Identity.Valid, 0, 0)))

	// encrypted private key in the owner-only partition
	keyPEM, err := store.CAKey("ca")
	assert.Nil(t, err)
	block, _ := pem.Decode(keyPEM)
	assert.NotNil(t, block)
	assert.Equal(t, "ENCRYPTED PRIVATE KEY", block.Type)

	info, err := store.fs.Stat("localca-test/ca/private/ca.key")
	assert.Nil(t, err)
	assert.Equal(t, privateKeyMode, info.Mode().Perm())

	_, err = ParsePrivateKey(block.Bytes, []byte("wrong-passphrase"))
	assert.ErrorIs(t, err, ErrInvalidPassword)

	privateKey, err := ParsePrivateKey(block.Bytes, testPassphrase)
	assert.Nil(t, err)
	assert.NotNil(t, privateKey)

	// serial registered and recorded in the database
	serial, err := store.Serial()
	assert.Nil(t, err)
	serialHex := fmt.Sprintf("%X", certificate.SerialNumber)
	assert.Equal(t, serialHex+"\n", string(serial))

	index, err := store.Index()
	assert.Nil(t, err)
	assert.Contains(t, string(index), "V\t")
	assert.Contains(t, string(index), serialHex)
	assert.Contains(t, string(index), config.Identity.Subject.String())

	// signing policy materialized without an alt_names section
	cnf, err := afero.ReadFile(store.fs, "localca-test/localca.cnf")
	assert.Nil(t, err)
	assert.Contains(t, string(cnf), "[ v3_ca ]")
	assert.NotContains(t, string(cnf), "alt_names")

	// convenience copy and trust bundle at the store root
	certPEM, err := store.GetArtifact("ca", FSEXT_PEM)
	assert.Nil(t, err)
	parsed, err := DecodePEM(certPEM)
	assert.Nil(t, err)
	assert.True(t, parsed.Equal(certificate))

	bundle, err := ca.TrustBundle()
	assert.Nil(t, err)
	bundled, err := DecodeTrustBundle(bundle)
	assert.Nil(t, err)
	assert.Len(t, bundled, 1)
	assert.True(t, bundled[0].Equal(certificate))
}

func TestCAInitPassphraseTooShort(t *testing.T) {

	config := testConfig()
	ca, store := testCA(config)
	assert.Nil(t, store.Initialize())

	_, err := ca.Init([]byte("abc"))
	assert.ErrorIs(t, err, ErrPassphraseTooShort)

	// no key material was produced
	exists, _ := afero.Exists(store.fs, "localca-test/ca/private/ca.key")
	assert.False(t, exists)
}

func TestCAInitRequiresStore(t *testing.T) {

	config := testConfig()
	ca, _ := testCA(config)

	_, err := ca.Init(testPassphrase)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestIssueCertificate(t *testing.T) {

	config := testConfig()
	ca, store := testCA(config)
	assert.Nil(t, store.Initialize())

	caCert, err := ca.Init(testPassphrase)
	assert.Nil(t, err)

	request := CertificateRequest{
		Name:  "www.example.com",
		Valid: 825,
		Subject: Subject{
			CommonName:   "www.example.com",
			Organization: "Example, Inc.",
			Country:      "US",
			Province:     "California",
			Locality:     "San Francisco",
		},
		SANS: &SubjectAlternativeNames{
			DNS: []string{"example.com", "www.example.com"},
		},
	}
	certificate, err := ca.IssueCertificate(request)
	assert.Nil(t, err)

	// server profile, chained to the CA
	assert.False(t, certificate.IsCA)
	assert.True(t, certificate.BasicConstraintsValid)
	assert.Equal(t,
		x509.KeyUsageDigitalSignature|x509.KeyUsageKeyEncipherment,
		certificate.KeyUsage)
	assert.Equal(t,
		[]x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		certificate.ExtKeyUsage)
	assert.Equal(t,
		[]string{"example.com", "www.example.com"}, certificate.DNSNames)
	assert.Nil(t, certificate.CheckSignatureFrom(caCert))
	assert.Equal(t, caCert.SubjectKeyId, certificate.AuthorityKeyId)

	// artifacts at the store root: unencrypted key, CSR, certificate
	keyPEM, err := store.GetArtifact("www.example.com", FSEXT_PRIVATE_PEM)
	assert.Nil(t, err)
	block, _ := pem.Decode(keyPEM)
	assert.Equal(t, "PRIVATE KEY", block.Type)

	csrPEM, err := store.GetArtifact("www.example.com", FSEXT_CSR)
	assert.Nil(t, err)
	csr, err := DecodeCSR(csrPEM)
	assert.Nil(t, err)
	assert.Equal(t, "www.example.com", csr.Subject.CommonName)

	certPEM, err := store.GetArtifact("www.example.com", FSEXT_PEM)
	assert.Nil(t, err)
	parsed, err := DecodePEM(certPEM)
	assert.Nil(t, err)
	assert.True(t, parsed.Equal(certificate))

	// mirrored into the certs partition and retrievable by name
	retrieved, err := ca.Certificate("www.example.com")
	assert.Nil(t, err)
	assert.True(t, retrieved.Equal(certificate))

	// policy re-materialized with the request SANs
	cnf, err := afero.ReadFile(store.fs, "localca-test/localca.cnf")
	assert.Nil(t, err)
	assert.Contains(t, string(cnf), "DNS.1 = example.com")
	assert.Contains(t, string(cnf), "DNS.2 = www.example.com")

	// both certificates in the database
	index, err := store.Index()
	assert.Nil(t, err)
	assert.Contains(t, string(index), fmt.Sprintf("%X", caCert.SerialNumber))
	assert.Contains(t, string(index), fmt.Sprintf("%X", certificate.SerialNumber))
}

func TestIssueCertificatePolicyMismatch(t *testing.T) {

	config := testConfig()
	ca, store := testCA(config)
	assert.Nil(t, store.Initialize())

	_, err := ca.Init(testPassphrase)
	assert.Nil(t, err)

	request := CertificateRequest{
		Subject: Subject{
			CommonName:   "www.example.com",
			Organization: "Other Org",
			Country:      "US",
			Province:     "California",
			Locality:     "San Francisco",
		},
	}
	_, err = ca.IssueCertificate(request)
	assert.ErrorIs(t, err, ErrPolicyMismatch)
}

func TestIssueCertificateInvalidValidity(t *testing.T) {

	config := testConfig()
	ca, store := testCA(config)
	assert.Nil(t, store.Initialize())

	_, err := ca.Init(testPassphrase)
	assert.Nil(t, err)

	notBefore := time.Now().UTC()
	request := CertificateRequest{
		Subject:   config.Identity.Subject,
		NotBefore: notBefore,
		NotAfter:  notBefore.AddDate(0, 0, -1),
	}
	_, err = ca.IssueCertificate(request)
	assert.ErrorIs(t, err, ErrInvalidValidity)
}

func TestIssueCertificateRequiresInit(t *testing.T) {

	config := testConfig()
	ca, store := testCA(config)
	assert.Nil(t, store.Initialize())

	_, err := ca.IssueCertificate(CertificateRequest{
		Subject: config.Identity.Subject,
	})
	assert.ErrorIs(t, err, ErrCANotInitialized)
}

func TestLoad(t *testing.T) {

	config := testConfig()
	logger := logging.DefaultLogger()
	fs := afero.NewMemMapFs()
	store := NewStore(logger, fs, config.Home)
	assert.Nil(t, store.Initialize())

	ca := NewCA(logger, config, store, rand.Reader)
	caCert, err := ca.Init(testPassphrase)
	assert.Nil(t, err)

	// a fresh handle over the same store
	reloaded := NewCA(logger, config, NewStore(logger, fs, config.Home), rand.Reader)

	_, err = reloaded.Load([]byte("wrong-passphrase"))
	assert.ErrorIs(t, err, ErrInvalidPassword)

	certificate, err := reloaded.Load(testPassphrase)
	assert.Nil(t, err)
	assert.True(t, certificate.Equal(caCert))

	issued, err := reloaded.IssueCertificate(CertificateRequest{
		Subject: Subject{
			CommonName:   "mail.example.com",
			Organization: "Example, Inc.",
			Country:      "US",
			Province:     "California",
			Locality:     "San Francisco",
		},
	})
	assert.Nil(t, err)
	assert.Nil(t, issued.CheckSignatureFrom(caCert))
}

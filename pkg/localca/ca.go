package localca

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-localca/pkg/logging"
)

const MinPassphraseLength = 4

var (
	ErrPassphraseTooShort = fmt.Errorf(
		"local-ca: passphrase must be at least %d characters", MinPassphraseLength)
	ErrCANotInitialized = errors.New("local-ca: certificate authority not initialized")
	ErrInvalidValidity  = errors.New("local-ca: certificate validity window is invalid")
)

// CertificateAuthority issues and retrieves certificates backed by a
// filesystem Store.
type CertificateAuthority interface {
	Init(passphrase []byte) (*x509.Certificate, error)
	Load(passphrase []byte) (*x509.Certificate, error)
	IssueCertificate(request CertificateRequest) (*x509.Certificate, error)
	Certificate(name string) (*x509.Certificate, error)
	TrustBundle() ([]byte, error)
}

type CA struct {
	logger      *logging.Logger
	config      *Config
	store       *Store
	random      io.Reader
	signer      crypto.Signer
	certificate *x509.Certificate
}

// NewCA creates a Certificate Authority handle over an initialized
// store. The signing key stays on disk until Init or Load runs.
func NewCA(logger *logging.Logger, config *Config, store *Store, random io.Reader) *CA {
	if config.KeySize == 0 {
		config.KeySize = DefaultKeySize
	}
	if config.ValidDays == 0 {
		config.ValidDays = DefaultValidDays
	}
	if config.Identity.Valid == 0 {
		config.Identity.Valid = DefaultCAValidYears
	}
	return &CA{
		logger: logger,
		config: config,
		store:  store,
		random: random,
	}
}

// Init creates the Certificate Authority: a passphrase encrypted RSA
// signing key, a self-signed certificate under the CA extension
// profile, the signing policy document, the registry entries, and the
// exportable trust bundle.
func (ca *CA) Init(passphrase []byte) (*x509.Certificate, error) {

	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooShort
	}
	if !ca.store.IsInitialized() {
		return nil, ErrNotInitialized
	}

	identity := ca.config.Identity
	name := identity.Name
	subject := identity.Subject
	ca.logger.Infof("creating certificate authority: %s", subject.CommonName)

	policy := NewSigningPolicy(identity, ca.store, nil)
	if err := ca.store.WritePolicy(policy); err != nil {
		return nil, err
	}

	privateKey, err := rsa.GenerateKey(ca.random, ca.config.KeySize)
	if err != nil {
		return nil, err
	}
	keyDER, err := EncodePrivKey(privateKey, passphrase)
	if err != nil {
		return nil, err
	}
	keyPEM, err := EncodePrivKeyPEM(keyDER, true)
	if err != nil {
		return nil, err
	}
	if err := ca.store.SaveCAKey(name, keyPEM); err != nil {
		return nil, err
	}

	serialNumber, err := NewSerialNumber(ca.random)
	if err != nil {
		return nil, err
	}
	if err := ca.store.WriteSerial(serialNumber); err != nil {
		return nil, err
	}

	csr, err := ca.createCSR(subject, nil, privateKey)
	if err != nil {
		return nil, err
	}
	csrPEM, err := EncodeCSR(csr.Raw)
	if err != nil {
		return nil, err
	}
	if err := ca.store.SaveCAArtifact(name, csrPEM, FSEXT_CSR); err != nil {
		return nil, err
	}

	keyID, err := subjectKeyIdentifier(privateKey.Public())
	if err != nil {
		return nil, err
	}

	notBefore := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serialNumber.BigInt(),
		Subject:               csr.Subject,
		NotBefore:             notBefore,
		NotAfter:              notBefore.AddDate(identity.Valid, 0, 0),
		SignatureAlgorithm:    x509.SHA256WithRSA,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          keyID,
		AuthorityKeyId:        keyID,
	}
	derCert, err := x509.CreateCertificate(
		ca.random, template, template, csr.PublicKey, privateKey)
	if err != nil {
		return nil, err
	}
	certificate, err := x509.ParseCertificate(derCert)
	if err != nil {
		return nil, err
	}

	if err := ca.saveIssued(name, certificate, serialNumber, subject); err != nil {
		return nil, err
	}

	// Convenience copy of the CA certificate at the store root,
	// alongside the exportable trust bundle
	certPEM, err := EncodePEM(derCert)
	if err != nil {
		return nil, err
	}
	if err := ca.store.SaveArtifact(name, certPEM, FSEXT_PEM); err != nil {
		return nil, err
	}
	bundle, err := EncodeTrustBundle(certificate)
	if err != nil {
		return nil, err
	}
	if err := ca.store.SaveArtifact(name, bundle, FSEXT_PKCS12); err != nil {
		return nil, err
	}

	ca.signer = privateKey
	ca.certificate = certificate
	return certificate, nil
}

// Load unlocks an existing Certificate Authority from the store so
// additional certificates may be issued.
func (ca *CA) Load(passphrase []byte) (*x509.Certificate, error) {
	name := ca.config.Identity.Name
	keyPEM, err := ca.store.CAKey(name)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, ErrInvalidEncodingPEM
	}
	privateKey, err := ParsePrivateKey(block.Bytes, passphrase)
	if err != nil {
		return nil, err
	}
	signer, ok := privateKey.(crypto.Signer)
	if !ok {
		return nil, ErrInvalidPrivateKey
	}
	derCert, err := ca.store.GetCAArtifact(name, FSEXT_DER)
	if err != nil {
		return nil, err
	}
	certificate, err := x509.ParseCertificate(derCert)
	if err != nil {
		return nil, err
	}
	ca.signer = signer
	ca.certificate = certificate
	return certificate, nil
}

// IssueCertificate issues an end-entity server certificate signed by
// the Certificate Authority. The signing policy is re-materialized
// with the request's subject alternative names and its match rules
// enforced before any key material is generated.
func (ca *CA) IssueCertificate(request CertificateRequest) (*x509.Certificate, error) {

	if ca.signer == nil || ca.certificate == nil {
		return nil, ErrCANotInitialized
	}

	name := request.Name
	if name == "" {
		name = request.Subject.CommonName
	}
	ca.logger.Infof("issuing certificate: %s", request.Subject.CommonName)

	notBefore, notAfter := request.Window(ca.config.ValidDays)
	if !notAfter.After(notBefore) {
		return nil, fmt.Errorf("%w: notAfter %s, notBefore %s",
			ErrInvalidValidity, notAfter, notBefore)
	}

	var sans []string
	if request.SANS != nil {
		sans = request.SANS.DNS
	}
	policy := NewSigningPolicy(ca.config.Identity, ca.store, sans)
	if err := ca.store.WritePolicy(policy); err != nil {
		return nil, err
	}
	if err := policy.Match(request.Subject); err != nil {
		return nil, err
	}

	serialNumber, err := NewSerialNumber(ca.random)
	if err != nil {
		return nil, err
	}
	if err := ca.store.WriteSerial(serialNumber); err != nil {
		return nil, err
	}

	privateKey, err := rsa.GenerateKey(ca.random, ca.config.KeySize)
	if err != nil {
		return nil, err
	}
	keyDER, err := EncodePrivKey(privateKey, nil)
	if err != nil {
		return nil, err
	}
	keyPEM, err := EncodePrivKeyPEM(keyDER, false)
	if err != nil {
		return nil, err
	}
	if err := ca.store.SaveArtifact(name, keyPEM, FSEXT_PRIVATE_PEM); err != nil {
		return nil, err
	}

	csr, err := ca.createCSR(request.Subject, sans, privateKey)
	if err != nil {
		return nil, err
	}
	csrPEM, err := EncodeCSR(csr.Raw)
	if err != nil {
		return nil, err
	}
	if err := ca.store.SaveArtifact(name, csrPEM, FSEXT_CSR); err != nil {
		return nil, err
	}

	keyID, err := subjectKeyIdentifier(privateKey.Public())
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          serialNumber.BigInt(),
		Subject:               csr.Subject,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		DNSNames:              csr.DNSNames,
		SubjectKeyId:          keyID,
		AuthorityKeyId:        ca.certificate.SubjectKeyId,
	}
	derCert, err := x509.CreateCertificate(
		ca.random, template, ca.certificate, csr.PublicKey, ca.signer)
	if err != nil {
		return nil, err
	}
	certificate, err := x509.ParseCertificate(derCert)
	if err != nil {
		return nil, err
	}

	if err := ca.saveIssued(name, certificate, serialNumber, request.Subject); err != nil {
		return nil, err
	}
	certPEM, err := EncodePEM(derCert)
	if err != nil {
		return nil, err
	}
	if err := ca.store.SaveArtifact(name, certPEM, FSEXT_PEM); err != nil {
		return nil, err
	}

	return certificate, nil
}

// Certificate retrieves an issued certificate from the store.
func (ca *CA) Certificate(name string) (*x509.Certificate, error) {
	derCert, err := ca.store.GetCAArtifact(name, FSEXT_DER)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(derCert)
}

// TrustBundle returns the exported PKCS12 trust store bundle.
func (ca *CA) TrustBundle() ([]byte, error) {
	return ca.store.GetArtifact(ca.config.Identity.Name, FSEXT_PKCS12)
}

// createCSR builds and signs a certificate signing request, then
// parses it back and verifies its signature before use.
func (ca *CA) createCSR(
	subject Subject, sans []string, privateKey crypto.Signer) (*x509.CertificateRequest, error) {

	template := &x509.CertificateRequest{
		Subject:            subject.PKIXName(),
		DNSNames:           sans,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	derCSR, err := x509.CreateCertificateRequest(ca.random, template, privateKey)
	if err != nil {
		return nil, err
	}
	csr, err := x509.ParseCertificateRequest(derCSR)
	if err != nil {
		return nil, err
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, err
	}
	return csr, nil
}

// saveIssued writes the certificate into the certs partition as DER
// and PEM and appends it to the certificate database.
func (ca *CA) saveIssued(
	name string, certificate *x509.Certificate,
	serialNumber SerialNumber, subject Subject) error {

	if err := ca.store.SaveCAArtifact(name, certificate.Raw, FSEXT_DER); err != nil {
		return err
	}
	certPEM, err := EncodePEM(certificate.Raw)
	if err != nil {
		return err
	}
	if err := ca.store.SaveCAArtifact(name, certPEM, FSEXT_PEM); err != nil {
		return err
	}
	return ca.store.RecordIssued(serialNumber, certificate.NotAfter, subject)
}

// subjectKeyIdentifier derives the key identifier extension value by
// hashing the subjectPublicKey bit string, RFC 5280 method 1.
func subjectKeyIdentifier(publicKey crypto.PublicKey) ([]byte, error) {
	var spki struct {
		Algorithm        pkix.AlgorithmIdentifier
		SubjectPublicKey asn1.BitString
	}
	spkiASN1, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	if _, err := asn1.Unmarshal(spkiASN1, &spki); err != nil {
		return nil, err
	}
	skid := sha1.Sum(spki.SubjectPublicKey.Bytes)
	return skid[:], nil
}

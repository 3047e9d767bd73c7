package localca

import (
	"crypto/x509/pkix"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultKeySize      = 4096
	DefaultValidDays    = 365
	DefaultCAValidYears = 10
)

type Config struct {
	Home      string               `yaml:"home" json:"home" mapstructure:"home"`
	KeySize   int                  `yaml:"key-size" json:"key_size" mapstructure:"key-size"`
	ValidDays int                  `yaml:"issued-valid-days" json:"issued_valid_days" mapstructure:"issued-valid-days"`
	Identity  Identity             `yaml:"identity" json:"identity" mapstructure:"identity"`
	Issue     []CertificateRequest `yaml:"issue" json:"issue" mapstructure:"issue"`
}

// Identity describes the Certificate Authority itself. Valid is
// expressed in years.
type Identity struct {
	Name    string  `yaml:"name" json:"name" mapstructure:"name"`
	Valid   int     `yaml:"valid" json:"valid" mapstructure:"valid"`
	Subject Subject `yaml:"subject" json:"subject" mapstructure:"subject"`
}

type Subject struct {
	CommonName         string `yaml:"cn" json:"cn" mapstructure:"cn"`
	Organization       string `yaml:"organization" json:"organization" mapstructure:"organization"`
	OrganizationalUnit string `yaml:"organizational-unit" json:"organizational_unit" mapstructure:"organizational-unit"`
	Country            string `yaml:"country" json:"country" mapstructure:"country"`
	Province           string `yaml:"province" json:"province" mapstructure:"province"`
	Locality           string `yaml:"locality" json:"locality" mapstructure:"locality"`
	Email              string `yaml:"email" json:"email" mapstructure:"email"`
}

type SubjectAlternativeNames struct {
	DNS []string `yaml:"dns" json:"dns" mapstructure:"dns"`
}

// CertificateRequest describes a single end-entity certificate to
// issue. When NotBefore / NotAfter are unset the validity window
// starts now and runs for Valid days.
type CertificateRequest struct {
	Name      string                   `yaml:"name" json:"name" mapstructure:"name"`
	Valid     int                      `yaml:"valid" json:"valid" mapstructure:"valid"`
	Subject   Subject                  `yaml:"subject" json:"subject" mapstructure:"subject"`
	NotBefore time.Time                `yaml:"not-before" json:"not_before" mapstructure:"not-before"`
	NotAfter  time.Time                `yaml:"not-after" json:"not_after" mapstructure:"not-after"`
	SANS      *SubjectAlternativeNames `yaml:"sans" json:"sans" mapstructure:"sans"`
}

// PKIXName maps the subject onto the x509 distinguished name fields,
// skipping empty attributes.
func (subject Subject) PKIXName() pkix.Name {
	name := pkix.Name{
		CommonName: subject.CommonName,
	}
	if subject.Organization != "" {
		name.Organization = []string{subject.Organization}
	}
	if subject.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{subject.OrganizationalUnit}
	}
	if subject.Country != "" {
		name.Country = []string{subject.Country}
	}
	if subject.Province != "" {
		name.Province = []string{subject.Province}
	}
	if subject.Locality != "" {
		name.Locality = []string{subject.Locality}
	}
	return name
}

// String renders the subject as an openssl style one-line
// distinguished name, the form used by the issued certificate
// database.
func (subject Subject) String() string {
	var sb strings.Builder
	attrs := []struct {
		key   string
		value string
	}{
		{"C", subject.Country},
		{"ST", subject.Province},
		{"L", subject.Locality},
		{"O", subject.Organization},
		{"OU", subject.OrganizationalUnit},
		{"CN", subject.CommonName},
		{"emailAddress", subject.Email},
	}
	for _, attr := range attrs {
		if attr.value == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("/%s=%s", attr.key, attr.value))
	}
	return sb.String()
}

// Window resolves the request validity period. An explicit window
// wins; otherwise the certificate is valid from now for the request's
// Valid days, falling back to defaultDays.
func (request CertificateRequest) Window(defaultDays int) (time.Time, time.Time) {
	if !request.NotBefore.IsZero() || !request.NotAfter.IsZero() {
		return request.NotBefore, request.NotAfter
	}
	days := request.Valid
	if days == 0 {
		days = defaultDays
	}
	notBefore := time.Now().UTC()
	return notBefore, notBefore.AddDate(0, 0, days)
}

package cmd

import (
	"testing"

	"github.com/jeremyhahn/go-localca/pkg/app"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func Test_Init(t *testing.T) {

	InitParams.Passphrase = []byte("test-passphrase")

	App = app.DefaultTestConfig()

	// init: initializes the store, the CA and the configured certificates
	response := executeCommand(rootCmd, []string{"init"})
	assert.Equal(t, "Certificate Authority successfully initialized\n", response)

	issued := []string{
		"localca-test/www.example.com.crt",
		"localca-test/mail.example.com.crt",
		"localca-test/vpn.example.com.crt",
		"localca-test/ca.crt",
		"localca-test/ca.p12",
	}
	for _, file := range issued {
		exists, _ := afero.Exists(App.FS, file)
		assert.True(t, exists, file)
	}

	// issue: signs a new server certificate
	response = executeCommand(rootCmd, []string{
		"issue", "--cn", "api.example.com", "--sans", "api.example.com"})
	assert.Contains(t, response, "BEGIN CERTIFICATE")

	// show: displays the CA certificate
	response = executeCommand(rootCmd, []string{"show", "ca"})
	assert.Contains(t, response, "Is CA: true")
	assert.Contains(t, response, "BEGIN CERTIFICATE")

	// show: displays the issued certificate
	response = executeCommand(rootCmd, []string{"show", "api.example.com"})
	assert.Contains(t, response, "Is CA: false")
	assert.Contains(t, response, "api.example.com")

	// version
	response = executeCommand(rootCmd, []string{"version"})
	assert.Contains(t, response, app.Version)
}

package cmd

import (
	"github.com/jeremyhahn/go-localca/pkg/app"
)

var (
	App        *app.App
	InitParams = &app.AppInitParams{}
	Passphrase string
	CommonName,
	CertName,
	SansDNS string
	ValidDays int
	err       error
)

package fabric

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestNewConnectorMissingCertificate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()

	_, err := NewConnector(Config{
		Endpoint: "localhost:7051",
		MSPID:    "Org1MSP",
		CertPath: filepath.Join(dir, "cert.pem"),
		KeyPath:  filepath.Join(dir, "key.pem"),
	}, logger)

	assert.ErrorContains(t, err, "client certificate")
}

func TestNewConnectorInvalidCertificate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	assert.NoError(t, os.WriteFile(certPath, []byte("not a certificate"), 0o600))

	_, err := NewConnector(Config{
		Endpoint: "localhost:7051",
		MSPID:    "Org1MSP",
		CertPath: certPath,
		KeyPath:  filepath.Join(dir, "key.pem"),
	}, logger)

	assert.ErrorContains(t, err, "parse client certificate")
}

func TestTransportCredentialsWithoutCA(t *testing.T) {
	creds, err := transportCredentials("", "")
	assert.NoError(t, err)
	assert.Equal(t, "insecure", creds.Info().SecurityProtocol)
}

func TestTransportCredentialsMissingCA(t *testing.T) {
	_, err := transportCredentials(filepath.Join(t.TempDir(), "ca.pem"), "")
	assert.ErrorContains(t, err, "TLS CA certificate")
}

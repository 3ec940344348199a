package cmd

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rew2streammagic/internal/devicemock"
	"rew2streammagic/internal/logger"
)

const sampleExport = `Filter Settings file
Equaliser: Generic
Filter  1: ON  LS  Fc    60.0 Hz  Gain   4.5 dB  Q  0.71
Filter  2: ON  PK  Fc   120.0 Hz  Gain  -6.2 dB  Q  4.32
Filter  3: ON  HP  Fc    30.0 Hz
`

// resetFlags clears flag-bound globals so earlier tests cannot leak values.
func resetFlags() {
	flagHost = ""
	flagTimeout = 0
	flagDryRun = false
	flagLogLevel = ""
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filters.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestDryRunPrintsBandsAndSkipsSession(t *testing.T) {
	path := writeExport(t, sampleExport)

	// No device exists at this address; dry-run must never try it.
	out, err := execute(t, path, "--dry-run", "--host", "127.0.0.1:1")
	require.NoError(t, err)

	assert.Contains(t, out, "Band 1: Freq=60Hz, Gain=4.5dB, Q=0.71")
	assert.Contains(t, out, "Band 2: Freq=120Hz, Gain=-6.2dB, Q=4.32")
	assert.Contains(t, out, "Band 3: Freq=30Hz, Gain=nonedB, Q=none")
	assert.NotContains(t, out, "Failed")
}

func TestMissingFileFails(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "nope.txt"), "--dry-run")
	require.Error(t, err)
}

func TestNoBandsFoundFails(t *testing.T) {
	path := writeExport(t, "Filter 1: OFF PK Fc 100 Hz Gain 1.0 dB Q 1.00\n")
	_, err := execute(t, path, "--dry-run")
	require.ErrorIs(t, err, errNoBands)
}

func TestInvalidAddressFailsBeforeParsing(t *testing.T) {
	path := writeExport(t, sampleExport)
	_, err := execute(t, path, "--host", "not a host!")
	require.ErrorIs(t, err, errInvalidAddress)
}

func TestApplyAgainstMockDevice(t *testing.T) {
	mock := devicemock.New("1.9", logger.Get(logger.ErrorLevel))
	ts := httptest.NewServer(mock.Routes())
	t.Cleanup(ts.Close)
	host := strings.TrimPrefix(ts.URL, "http://")

	path := writeExport(t, sampleExport)
	out, err := execute(t, path, "--host", host, "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "applied successfully")

	applied := mock.LastApplied()
	require.NotNil(t, applied)
	assert.Len(t, applied.Bands, 3)
}

func TestApplyFailsWhenDeviceVersionTooOld(t *testing.T) {
	mock := devicemock.New("1.0", logger.Get(logger.ErrorLevel))
	ts := httptest.NewServer(mock.Routes())
	t.Cleanup(ts.Close)
	host := strings.TrimPrefix(ts.URL, "http://")

	path := writeExport(t, sampleExport)
	out, err := execute(t, path, "--host", host, "--timeout", "5s")
	require.Error(t, err)
	assert.Contains(t, out, "Failed to apply")
	assert.Nil(t, mock.LastApplied(), "apply must not run below the version floor")
}

func TestValidateHost(t *testing.T) {
	valid := []string{
		"192.168.1.29",
		"cxn.local",
		"my-streamer",
		"127.0.0.1:8080",
		"::1",
		"fe80::1234:5678:abcd:ef01",
		"fe80::1%eth0",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334",
		"[2001:db8::1]:8080",
	}
	for _, h := range valid {
		assert.NoError(t, validateHost(h), "host %q", h)
	}

	invalid := []string{
		"",
		"not a host!",
		"bad_underscore",
		"-leading.dash",
		"host:port",
	}
	for _, h := range invalid {
		assert.ErrorIs(t, validateHost(h), errInvalidAddress, "host %q", h)
	}
}

package observability

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/dashboard-bootstrap/internal/config"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

func TestStartPprofServer_Disabled(t *testing.T) {
	var wg conc.WaitGroup
	srv, err := StartPprofServer(config.Config{PprofEnabled: false}, logging.NewNop(), &wg)
	require.NoError(t, err)
	require.Nil(t, srv)
	require.NoError(t, StopPprofServer(srv, logging.NewNop(), time.Second))
	wg.Wait()
}

func TestStartPprofServer_ServesAndStops(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	var wg conc.WaitGroup
	srv, err := StartPprofServer(config.Config{PprofEnabled: true, PprofAddr: addr}, logging.NewNop(), &wg)
	require.NoError(t, err)
	require.NotNil(t, srv)

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/debug/pprof/", addr))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, StopPprofServer(srv, logging.NewNop(), time.Second))
	wg.Wait()
}

func TestInitPyroscope_Disabled(t *testing.T) {
	stop, err := InitPyroscope(config.Config{}, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, stop())
}

// netio-sim serves a NETIO PowerBOX compatible /netio.json so the power
// meter sensor can be exercised without hardware. Sending SIGUSR1 toggles
// the simulated load between idle and busy.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/greenbench/greenbench-sdk-go/internal/netio/netio_sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen     string
		outputID   int
		outputName string
		idle, busy float64
	)
	flagSet := pflag.NewFlagSet("netio-sim", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", "127.0.0.1:8480", "address to serve /netio.json on")
	flagSet.IntVar(&outputID, "output", 1, "id of the simulated output")
	flagSet.StringVar(&outputName, "name", "bench", "name of the simulated output")
	flagSet.Float64Var(&idle, "idle-watts", 45, "load reported while idle")
	flagSet.Float64Var(&busy, "busy-watts", 160, "load reported while busy")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	sim := netio_sim.NewSimulator(netio_sim.WithOutput(outputID, outputName), netio_sim.WithLoad(idle, busy))
	srv := &http.Server{Addr: listen, Handler: sim.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	toggle := make(chan os.Signal, 1)
	signal.Notify(toggle, syscall.SIGUSR1)
	defer signal.Stop(toggle)
	go func() {
		busyNow := false
		for {
			select {
			case <-toggle:
				busyNow = !busyNow
				sim.SetBusy(busyNow)
				logrus.WithField("busy", busyNow).Info("load toggled")
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("address", listen).Info("serving /netio.json")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"requests": sim.Requests(), "energy_wh": sim.EnergyWh()}).Info("stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-setoran-session/internal/devidp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type devIDPFlags struct {
	addr         string
	realm        string
	clientID     string
	clientSecret string
	username     string
	password     string
	name         string
	email        string
	nip          string
	students     []string
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func (c *cli) newDevIDPCommand() *cobra.Command {
	var f devIDPFlags

	cmd := &cobra.Command{
		Use:   "dev-idp",
		Short: "Run a local identity provider and setoran API for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			idp, err := devidp.New(
				devidp.WithRealm(f.realm),
				devidp.WithClient(f.clientID, f.clientSecret),
				devidp.WithTokenExpiry(f.accessTTL, f.refreshTTL),
				devidp.WithLogger(log.Logger),
			)
			if err != nil {
				return err
			}
			if _, err := idp.AddUser(f.username, f.password, f.name, f.email, f.nip); err != nil {
				return err
			}
			for _, entry := range f.students {
				student, err := parseStudent(entry)
				if err != nil {
					return err
				}
				idp.AddStudent(f.username, student.NIM, student.Name, student.Angkatan)
			}

			displayAppname(c.out, "dev idp")
			base := "http://" + listenHost(f.addr)
			fmt.Fprintf(c.out, "OAUTH_ISSUER_URL=%s%s\n", base, idp.RealmPath())
			fmt.Fprintf(c.out, "OAUTH_CLIENT_ID=%s\n", f.clientID)
			fmt.Fprintf(c.out, "API_BASE_URL=%s%s\n", base, devidp.RouteAPI)

			server := &http.Server{Addr: f.addr, Handler: idp, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- listenAndServe(server) }()

			ctx, cancel := context.WithCancel(commandContext(cmd))
			defer cancel()
			go func() {
				if err := <-errCh; err != nil {
					log.Error().Err(err).Msg("dev-idp: server stopped")
				}
				cancel()
			}()
			waitForStopSignal(ctx)
			return shutdown(server)
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", "127.0.0.1:8081", "Listen address")
	cmd.Flags().StringVar(&f.realm, "realm", "dev", "Realm name")
	cmd.Flags().StringVar(&f.clientID, "client-id", "setoran-mobile-dev", "OAuth client id")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "OAuth client secret (empty accepts any)")
	cmd.Flags().StringVar(&f.username, "user", "dosen", "Lecturer username")
	cmd.Flags().StringVar(&f.password, "password", "dosen", "Lecturer password")
	cmd.Flags().StringVar(&f.name, "name", "Dosen Pembimbing", "Lecturer display name")
	cmd.Flags().StringVar(&f.email, "email", "dosen@example.ac.id", "Lecturer email")
	cmd.Flags().StringVar(&f.nip, "nip", "198001012005011001", "Lecturer NIP")
	cmd.Flags().StringSliceVar(&f.students, "student", []string{"12150110001:Mahasiswa Satu:2021"},
		"Supervised student as nim:name:angkatan (repeatable)")
	cmd.Flags().DurationVar(&f.accessTTL, "access-ttl", 5*time.Minute, "Access token lifetime")
	cmd.Flags().DurationVar(&f.refreshTTL, "refresh-ttl", 30*time.Minute, "Refresh token lifetime")
	return cmd
}

func parseStudent(entry string) (devidp.Student, error) {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) != 3 {
		return devidp.Student{}, fmt.Errorf("student %q: want nim:name:angkatan", entry)
	}
	angkatan, err := strconv.Atoi(parts[2])
	if err != nil {
		return devidp.Student{}, fmt.Errorf("student %q: angkatan: %w", entry, err)
	}
	return devidp.Student{NIM: parts[0], Name: parts[1], Angkatan: angkatan}, nil
}

func listenHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("dev-idp: listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

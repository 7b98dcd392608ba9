package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/portero/internal/app"
	"github.com/dropDatabas3/portero/internal/domain/repository"
	"github.com/dropDatabas3/portero/internal/http/services/oauth"
)

// adminEnv abre storage + servicios para un comando y los cierra al final.
type adminEnv struct {
	st  *app.Storage
	svc oauth.Services
}

func openAdmin(ctx context.Context, g *globals) (*adminEnv, error) {
	st, err := app.OpenStorage(ctx, g.cfg)
	if err != nil {
		return nil, err
	}
	codec, err := app.NewCodec(g.cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &adminEnv{st: st, svc: app.NewServices(g.cfg, st, codec, nil)}, nil
}

func (e *adminEnv) Close() { e.st.Close() }

// withAdmin adapta un RunE que necesita el entorno admin.
func withAdmin(g *globals, fn func(ctx context.Context, e *adminEnv, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openAdmin(cmd.Context(), g)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd.Context(), e, args)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ─── tenant ───

func tenantCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Administración de tenants"}

	var slug, name, plan, id string
	create := &cobra.Command{
		Use:   "create",
		Short: "Crea un tenant activo",
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, _ []string) error {
			if slug == "" || name == "" {
				return fmt.Errorf("--slug y --name son requeridos")
			}
			t := &repository.Tenant{ID: id, Slug: slug, Name: name, PlanID: plan, Active: true}
			if err := e.st.Tenants().Create(ctx, t); err != nil {
				return err
			}
			if g.out == "json" {
				return printJSON(t)
			}
			fmt.Printf("tenant %s (%s) plan=%s\n", t.ID, t.Slug, t.PlanID)
			return nil
		}),
	}
	create.Flags().StringVar(&id, "id", "", "ID explícito (default uuid)")
	create.Flags().StringVar(&slug, "slug", "", "Slug único")
	create.Flags().StringVar(&name, "name", "", "Nombre visible")
	create.Flags().StringVar(&plan, "plan", "plan_free", "Plan: plan_free|plan_starter|plan_pro|plan_enterprise")

	setActive := func(use string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <tenant-id>",
			Short: "Cambia el estado activo del tenant",
			Args:  cobra.ExactArgs(1),
			RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, args []string) error {
				if err := e.st.Tenants().SetActive(ctx, args[0], active); err != nil {
					return err
				}
				fmt.Printf("tenant %s active=%v\n", args[0], active)
				return nil
			}),
		}
	}

	cmd.AddCommand(create, setActive("activate", true), setActive("deactivate", false))
	return cmd
}

// ─── client ───

func parseOverride(s string) (*repository.RateLimits, error) {
	if s == "" {
		return nil, nil
	}
	var m, h, d int64
	if _, err := fmt.Sscanf(s, "%d/%d/%d", &m, &h, &d); err != nil {
		return nil, fmt.Errorf("--rate debe ser minuto/hora/día, ej. 60/1000/10000")
	}
	return &repository.RateLimits{PerMinute: m, PerHour: h, PerDay: d}, nil
}

func clientCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Administración de clientes OAuth"}
	cmd.AddCommand(
		clientCreateCmd(g),
		clientListCmd(g),
		clientGetCmd(g),
		clientUpdateCmd(g),
		clientSetActiveCmd(g, "activate", true),
		clientSetActiveCmd(g, "deactivate", false),
		clientRegenerateCmd(g),
		clientDeleteCmd(g),
		clientStatsCmd(g),
	)
	return cmd
}

func printSecret(g *globals, cs *oauth.ClientWithSecret) error {
	if g.out == "json" {
		return printJSON(map[string]any{
			"client_id":      cs.Client.ClientID,
			"client_secret":  cs.Secret,
			"tenant_id":      cs.Client.TenantID,
			"allowed_scopes": cs.Client.AllowedScopes,
		})
	}
	fmt.Printf("client_id:     %s\n", cs.Client.ClientID)
	fmt.Printf("client_secret: %s\n", cs.Secret)
	fmt.Println("Guardá el secret ahora: no se puede volver a mostrar.")
	return nil
}

func clientCreateCmd(g *globals) *cobra.Command {
	var tenantID, name, desc, scopes, rateSpec string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Crea un cliente e imprime su secret una única vez",
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, _ []string) error {
			override, err := parseOverride(rateSpec)
			if err != nil {
				return err
			}
			cs, err := e.svc.Clients.Create(ctx, oauth.CreateClientInput{
				TenantID:      tenantID,
				Name:          name,
				Description:   desc,
				AllowedScopes: oauth.ParseScopes(scopes),
				RateOverride:  override,
			})
			if err != nil {
				return err
			}
			return printSecret(g, cs)
		}),
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "ID del tenant dueño")
	cmd.Flags().StringVar(&name, "name", "", "Nombre del cliente")
	cmd.Flags().StringVar(&desc, "description", "", "Descripción")
	cmd.Flags().StringVar(&scopes, "scopes", "", "Scopes permitidos separados por espacio o coma (default config)")
	cmd.Flags().StringVar(&rateSpec, "rate", "", "Override minuto/hora/día, ej. 60/1000/10000")
	return cmd
}

func clientListCmd(g *globals) *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lista los clientes de un tenant",
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, _ []string) error {
			list, err := e.svc.Clients.List(ctx, tenantID)
			if err != nil {
				return err
			}
			if g.out == "json" {
				return printJSON(list)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "CLIENT_ID\tNAME\tACTIVE\tSCOPES\tREQUESTS\tLAST_USED")
			for _, c := range list {
				last := "-"
				if c.LastUsedAt != nil {
					last = c.LastUsedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%d\t%s\n",
					c.ClientID, c.Name, c.Active, strings.Join(c.AllowedScopes, " "), c.TotalRequests, last)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "ID del tenant (vacío = todos)")
	return cmd
}

func clientGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <client-id>",
		Short: "Muestra un cliente (sin secret)",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, args []string) error {
			c, err := e.svc.Clients.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(c)
		}),
	}
}

func clientUpdateCmd(g *globals) *cobra.Command {
	var name, desc, scopes, rateSpec string
	var clearRate bool
	var cmd *cobra.Command
	cmd = &cobra.Command{
		Use:   "update <client-id>",
		Short: "Modifica nombre, scopes u override de rate",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, args []string) error {
			var in oauth.UpdateClientInput
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("description") {
				in.Description = &desc
			}
			if cmd.Flags().Changed("scopes") {
				in.AllowedScopes = oauth.ParseScopes(scopes)
			}
			override, err := parseOverride(rateSpec)
			if err != nil {
				return err
			}
			in.RateOverride = override
			in.ClearOverride = clearRate

			c, err := e.svc.Clients.Update(ctx, args[0], in)
			if err != nil {
				return err
			}
			return printJSON(c)
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "Nuevo nombre")
	cmd.Flags().StringVar(&desc, "description", "", "Nueva descripción")
	cmd.Flags().StringVar(&scopes, "scopes", "", "Reemplaza los scopes permitidos")
	cmd.Flags().StringVar(&rateSpec, "rate", "", "Override minuto/hora/día")
	cmd.Flags().BoolVar(&clearRate, "clear-rate", false, "Quita el override y vuelve al tier del plan")
	return cmd
}

func clientSetActiveCmd(g *globals, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <client-id>",
		Short: "Cambia el estado activo del cliente",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, args []string) error {
			if err := e.svc.Clients.SetActive(ctx, args[0], active); err != nil {
				return err
			}
			fmt.Printf("client %s active=%v\n", args[0], active)
			return nil
		}),
	}
}

func clientRegenerateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-secret <client-id>",
		Short: "Genera un secret nuevo y revoca todos los tokens vivos",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, args []string) error {
			cs, revoked, err := e.svc.Clients.RegenerateSecret(ctx, args[0])
			if cs == nil {
				return err
			}
			if g.out != "json" {
				fmt.Printf("revoked %d token pairs\n", revoked)
			}
			if perr := printSecret(g, cs); perr != nil {
				return perr
			}
			if err != nil {
				// el secret nuevo ya está activo; quedan pares sin revocar
				return fmt.Errorf("secret rotated but token revocation incomplete, re-run to retry: %w", err)
			}
			return nil
		}),
	}
}

func clientDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id>",
		Short: "Borra el cliente y sus tokens",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, args []string) error {
			if err := e.svc.Clients.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("client %s deleted\n", args[0])
			return nil
		}),
	}
}

func clientStatsCmd(g *globals) *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "stats <client-id>",
		Short: "Agregados de uso a partir de los request logs",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(g, func(ctx context.Context, e *adminEnv, args []string) error {
			st, err := e.svc.Clients.Stats(ctx, args[0], time.Now().Add(-since))
			if err != nil {
				return err
			}
			return printJSON(st)
		}),
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Ventana hacia atrás")
	return cmd
}

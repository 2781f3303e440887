package reconcile

import (
	"fmt"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
	"github.com/melih-ucgun/warden/internal/secrets"
)

// connectionSchema lists the connection fields the engine compares. Secret
// fields (password, certificate) and server-assigned fields (created_at,
// user_id, example) are deliberately absent.
var connectionSchema = Schema{
	{Name: "host", Type: FieldScalar},
	{Name: "port", Type: FieldNumeric},
	{Name: "database", Type: FieldScalar},
	{Name: "db_timezone", Type: FieldScalar},
	{Name: "schema", Type: FieldScalar},
	{Name: "dialect_name", Type: FieldScalar},
	{Name: "username", Type: FieldScalar},
	{Name: "ssl", Type: FieldScalar},
	{Name: "max_connections", Type: FieldNumeric},
	{Name: "pool_timeout", Type: FieldNumeric},
	{Name: "uses_application_default_credentials", Type: FieldScalar},
}

// ConnectionReconciler diffs and applies database connections. The kind is
// additive: a connection removed from desired config is left alone.
type ConnectionReconciler struct {
	Client  backend.Client
	Secrets *secrets.Resolver
}

// Diff computes create/update items for the desired connections.
func (r *ConnectionReconciler) Diff(ctx *core.RunContext, desired []config.Connection) ([]core.DiffItem, error) {
	if len(desired) == 0 {
		return nil, nil
	}

	live, err := r.Client.ListConnections(ctx)
	if err != nil {
		return nil, &core.FetchError{Kind: core.KindConnection, Err: err}
	}

	liveByName := make(map[string]backend.Record, len(live))
	for _, rec := range live {
		liveByName[rec.Name] = rec
	}

	var items []core.DiffItem
	for _, conn := range desired {
		if conn.Name == "" {
			continue
		}

		payload, err := r.buildPayload(ctx, conn)
		if err != nil {
			return nil, err
		}

		existing, ok := liveByName[conn.Name]
		if !ok {
			items = append(items, core.DiffItem{
				Action:  core.ActionCreate,
				Kind:    core.KindConnection,
				Name:    conn.Name,
				Payload: payload,
			})
			continue
		}

		changes := DiffFields(connectionSchema, payload, existing.Fields)
		if len(changes) > 0 {
			items = append(items, core.DiffItem{
				Action:  core.ActionUpdate,
				Kind:    core.KindConnection,
				Name:    conn.Name,
				ID:      existing.ID,
				Changes: changes,
				Payload: payload,
			})
		}
	}
	return items, nil
}

// buildPayload produces the full backend payload: declared fields plus the
// name, with indirect secret references swapped for resolved values. Secrets
// are resolved here, never during comparison.
func (r *ConnectionReconciler) buildPayload(ctx *core.RunContext, conn config.Connection) (map[string]any, error) {
	payload := map[string]any{"name": conn.Name}
	for k, v := range conn.Fields {
		payload[k] = v
	}

	for envKey, target := range map[string]string{
		"password_env_var":    "password",
		"certificate_env_var": "certificate",
	} {
		ref, ok := payload[envKey].(string)
		if !ok || ref == "" {
			delete(payload, envKey)
			continue
		}
		delete(payload, envKey)

		val, err := r.Secrets.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", conn.Name, err)
		}
		payload[target] = val
	}
	return payload, nil
}

// Apply executes the items one by one; a failed mutation is recorded and the
// batch carries on.
func (r *ConnectionReconciler) Apply(ctx *core.RunContext, items []core.DiffItem) core.Summary {
	summary := core.Summary{Kind: core.KindConnection}
	for _, item := range items {
		var err error
		switch item.Action {
		case core.ActionCreate:
			ctx.Logger.Info(fmt.Sprintf("Creating connection '%s'", item.Name))
			err = r.Client.CreateConnection(ctx, item.Payload)
		case core.ActionUpdate:
			ctx.Logger.Info(fmt.Sprintf("Updating connection '%s'", item.Name))
			err = r.Client.UpdateConnection(ctx, item.Name, item.Payload)
		}

		if err != nil {
			applyErr := &core.ApplyError{Item: item, Err: err}
			ctx.Logger.Error(applyErr.Error())
			summary.Record(core.Failure(applyErr, item.Name))
			continue
		}
		summary.Record(core.SuccessChange(item.Name))
	}
	return summary
}

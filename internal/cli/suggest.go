package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/platform"
	"github.com/connectforce/connectforce/internal/spec"
	"github.com/connectforce/connectforce/internal/store"
	"github.com/connectforce/connectforce/internal/suggest"
)

// SuggestConfig captures the options for the suggest command.
type SuggestConfig struct {
	Targets    []string
	Sources    []string
	Object     string
	Connection string
	Endpoint   string
	Save       bool
	JSON       bool
}

func newSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest field mappings by name similarity",
		Long: "Pair every source field with its most similar target field. Fields come from explicit lists, " +
			"or from a Salesforce object describe (targets) and an endpoint's response schema (sources).",
		Example: strings.TrimSpace(`  connectforce suggest --targets Name,Phone,BillingCity --sources account_name,phone_number
  connectforce suggest --object Account --connection "NetSuite Prod" --endpoint getCustomers --save`),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := &SuggestConfig{}
			cfg.Targets, _ = flags.GetStringSlice("targets")
			cfg.Sources, _ = flags.GetStringSlice("sources")
			cfg.Object, _ = flags.GetString("object")
			cfg.Connection, _ = flags.GetString("connection")
			cfg.Endpoint, _ = flags.GetString("endpoint")
			cfg.Save, _ = flags.GetBool("save")
			cfg.JSON, _ = flags.GetBool("json")
			if err := cfg.validate(); err != nil {
				return err
			}
			return withEnv(cmd, func(e *env) error {
				return runSuggest(cmd.Context(), e, cfg, cmd.OutOrStdout())
			})
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("targets", nil, "Target (Salesforce) field names")
	flags.StringSlice("sources", nil, "Source (external) field names")
	flags.String("object", "", "Salesforce object whose fields are the targets")
	flags.String("connection", "", "Stored connection id or name providing the source fields")
	flags.String("endpoint", "", "Endpoint id or name whose response fields are the sources")
	flags.Bool("save", false, "Store the suggestions as a field mapping for the connection")
	flags.Bool("json", false, "Print suggestions as JSON")

	return cmd
}

func (c *SuggestConfig) validate() error {
	c.Targets = sanitizeTags(c.Targets)
	c.Sources = sanitizeTags(c.Sources)
	c.Object = strings.TrimSpace(c.Object)
	c.Connection = strings.TrimSpace(c.Connection)
	c.Endpoint = strings.TrimSpace(c.Endpoint)

	explicit := len(c.Targets) > 0 || len(c.Sources) > 0
	described := c.Object != "" || c.Connection != "" || c.Endpoint != ""
	switch {
	case explicit && described:
		return newUsageError("suggest: use either --targets/--sources or --object/--connection/--endpoint")
	case explicit:
		if len(c.Targets) == 0 || len(c.Sources) == 0 {
			return newUsageError("suggest: --targets and --sources are both required")
		}
		if c.Save {
			return newUsageError("suggest: --save needs --object, --connection and --endpoint")
		}
	case described:
		if c.Object == "" || c.Connection == "" || c.Endpoint == "" {
			return newUsageError("suggest: --object, --connection and --endpoint are all required")
		}
		if !platform.ValidObjectName(c.Object) {
			return newUsageError(fmt.Sprintf("suggest: invalid object name %q", c.Object))
		}
	default:
		return newUsageError("suggest: give --targets and --sources, or --object, --connection and --endpoint")
	}
	return nil
}

func runSuggest(ctx context.Context, e *env, cfg *SuggestConfig, w io.Writer) error {
	if len(cfg.Targets) > 0 {
		return printSuggestions(w, suggest.SuggestFieldMappings(cfg.Targets, cfg.Sources), cfg.JSON)
	}

	conn, err := e.connections.Resolve(ctx, cfg.Connection)
	if err != nil {
		return err
	}
	ep := findEndpoint(conn, cfg.Endpoint)
	if ep == nil {
		return newUsageError(fmt.Sprintf("suggest: connection %q has no endpoint %q", conn.Name, cfg.Endpoint))
	}
	sources := responseFields(ep.ResponseSchema)
	if len(sources) == 0 {
		return newUsageError(fmt.Sprintf("suggest: endpoint %q declares no response fields", ep.Name))
	}

	md := newMetadata(e.cfg, e.logger.Named("platform"))
	obj, err := md.DescribeObject(ctx, cfg.Object)
	if err != nil {
		return fmt.Errorf("describe %s: %w", cfg.Object, err)
	}
	suggestions := suggest.SuggestFieldMappings(obj.FieldNames(), sources)
	e.logger.Debug("suggested mappings",
		zap.String("object", cfg.Object),
		zap.String("endpoint", ep.Name),
		zap.Int("count", len(suggestions)))

	if cfg.Save {
		m := newFieldMapping(conn, ep, obj, suggestions, time.Now().UTC())
		if err := e.store.SaveMapping(ctx, &m); err != nil {
			return fmt.Errorf("save mapping: %w", err)
		}
		fmt.Fprintf(w, "Saved mapping %q (%s) with %d fields\n", m.Name, m.ID, len(m.Mappings))
	}
	return printSuggestions(w, suggestions, cfg.JSON)
}

// responseFields lists the top level fields of a response; array responses
// contribute their item fields.
func responseFields(s *spec.Schema) []string {
	if s != nil && s.Type == spec.TypeArray {
		s = s.Items
	}
	return s.PropertyNames()
}

func newFieldMapping(conn *spec.Connection, ep *spec.Endpoint, obj *platform.Object, suggestions []suggest.Suggestion, now time.Time) store.FieldMapping {
	fieldTypes := make(map[string]platform.Field, len(obj.Fields))
	for _, f := range obj.Fields {
		fieldTypes[f.Name] = f
	}
	item := ep.ResponseSchema
	if item != nil && item.Type == spec.TypeArray {
		item = item.Items
	}
	maps := make([]store.FieldMap, 0, len(suggestions))
	for _, s := range suggestions {
		fm := store.FieldMap{
			ID:              uuid.Must(uuid.NewV4()).String(),
			SalesforceField: s.TargetField,
			ExternalField:   s.SourceField,
			Direction:       store.ExternalToSalesforce,
			Confidence:      s.Confidence,
		}
		if f, ok := fieldTypes[s.TargetField]; ok {
			fm.SalesforceFieldType = f.Type
			fm.Required = f.Required
			fm.IsKey = f.ExternalID
		}
		if item != nil && item.Properties[s.SourceField] != nil {
			fm.ExternalFieldType = string(item.Properties[s.SourceField].Type)
		}
		maps = append(maps, fm)
	}
	return store.FieldMapping{
		ID:               uuid.Must(uuid.NewV4()).String(),
		Name:             fmt.Sprintf("%s - %s", obj.Name, ep.Name),
		ConnectionID:     conn.ID,
		EndpointID:       ep.ID,
		SalesforceObject: obj.Name,
		ExternalEntity:   ep.Name,
		Mappings:         maps,
		SyncDirection:    store.ExternalToSalesforce,
		SyncMode:         store.SyncUpsert,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func printSuggestions(w io.Writer, suggestions []suggest.Suggestion, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(suggestions, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions above the confidence threshold.")
		return nil
	}
	for _, s := range suggestions {
		fmt.Fprintf(w, "%s -> %s (%.2f)\n", s.SourceField, s.TargetField, s.Confidence)
	}
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/devblin/infisical/pkg/secrets"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewSecretsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Read and change end-to-end encrypted project secrets",
	}

	cmd.AddCommand(NewSecretsListCommand(app))
	cmd.AddCommand(NewSecretsVersionsCommand(app))
	cmd.AddCommand(NewSecretsBatchCommand(app))

	return cmd
}

func secretsService(cmd *cobra.Command, app *App) (*secrets.Service, error) {
	container, err := app.Container()
	if err != nil {
		return nil, err
	}

	deps, err := container.BuildSecretsDependencies(cmd.Context())
	if err != nil {
		return nil, err
	}

	return deps.SecretsService, nil
}

func NewSecretsListCommand(app *App) *cobra.Command {
	var (
		workspaceID string
		environment string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the decrypted secrets of a workspace environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			service, err := secretsService(cmd, app)
			if err != nil {
				return err
			}

			fileKey, err := service.GetLatestFileKey(cmd.Context(), workspaceID)
			if err != nil {
				return fmt.Errorf("failed to get workspace key: %w", err)
			}

			decrypted, err := service.GetProjectSecrets(cmd.Context(), secrets.GetProjectSecretsParams{
				WorkspaceID: workspaceID,
				Environment: environment,
				FileKey:     fileKey,
			})
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), decrypted)
			}

			rows := make([][]string, 0, len(decrypted))
			for _, s := range decrypted {
				value := s.Value
				if s.OverrideAction == domain.OverrideActionModified {
					value = s.ValueOverride + " " + dimStyle.Render("(personal)")
				}
				rows = append(rows, []string{s.Key, value, s.Comment, tagNames(s.Tags)})
			}

			return writeTable(cmd.OutOrStdout(), []string{"KEY", "VALUE", "COMMENT", "TAGS"}, rows)
		},
	}

	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace ID")
	cmd.Flags().StringVarP(&environment, "env", "e", "dev", "Environment slug")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json)")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

func NewSecretsVersionsCommand(app *App) *cobra.Command {
	var (
		workspaceID string
		offset      int
		limit       int
		output      string
	)

	cmd := &cobra.Command{
		Use:   "versions <secret-id>",
		Short: "List the decrypted value history of a secret, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			service, err := secretsService(cmd, app)
			if err != nil {
				return err
			}

			fileKey, err := service.GetLatestFileKey(cmd.Context(), workspaceID)
			if err != nil {
				return fmt.Errorf("failed to get workspace key: %w", err)
			}

			versions, err := service.GetSecretVersions(cmd.Context(), secrets.GetSecretVersionsParams{
				SecretID: args[0],
				Offset:   offset,
				Limit:    limit,
				FileKey:  fileKey,
			})
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), versions)
			}

			rows := make([][]string, 0, len(versions))
			for _, v := range versions {
				rows = append(rows, []string{v.ID, v.CreatedAt.UTC().Format("2006-01-02 15:04:05"), v.Value})
			}

			return writeTable(cmd.OutOrStdout(), []string{"ID", "CREATED", "VALUE"}, rows)
		},
	}

	cmd.Flags().StringVarP(&workspaceID, "workspace", "w", "", "Workspace ID")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of versions to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of versions")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json)")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

// batchFile is the plaintext batch format read by "secrets batch".
type batchFile struct {
	WorkspaceID string               `json:"workspaceId" yaml:"workspaceId"`
	Environment string               `json:"environment" yaml:"environment"`
	Requests    []batchFileOperation `json:"requests" yaml:"requests"`
}

type batchFileOperation struct {
	Method string          `json:"method" yaml:"method"`
	Secret batchFileSecret `json:"secret" yaml:"secret"`
}

type batchFileSecret struct {
	ID      string   `json:"id" yaml:"id"`
	Type    string   `json:"type" yaml:"type"`
	Key     string   `json:"key" yaml:"key"`
	Value   string   `json:"value" yaml:"value"`
	Comment string   `json:"comment" yaml:"comment"`
	Tags    []string `json:"tags" yaml:"tags"`
}

func NewSecretsBatchCommand(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Apply create, update and delete operations from a file",
		Long: `Read plaintext operations from a YAML or JSON file, encrypt them with the
workspace key and submit them as one batch request. Methods are create, update
and delete (or POST, PATCH and DELETE).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatchFile(file)
			if err != nil {
				return err
			}

			ops, err := batch.operations()
			if err != nil {
				return err
			}

			service, err := secretsService(cmd, app)
			if err != nil {
				return err
			}

			fileKey, err := service.GetLatestFileKey(cmd.Context(), batch.WorkspaceID)
			if err != nil {
				return fmt.Errorf("failed to get workspace key: %w", err)
			}

			req, err := service.EncryptBatch(cmd.Context(), *fileKey, batch.WorkspaceID, batch.Environment, ops)
			if err != nil {
				return err
			}

			res, err := service.BatchSecrets(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("✅ Applied %d operations, %d secrets returned", len(ops), len(res.Secrets))))

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a .yaml, .yml or .json batch file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var batch batchFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &batch)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &batch)
	default:
		return nil, fmt.Errorf("unsupported batch file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}

	if batch.WorkspaceID == "" || batch.Environment == "" {
		return nil, fmt.Errorf("batch file must set workspaceId and environment")
	}

	return &batch, nil
}

func (b *batchFile) operations() ([]secrets.PlainBatchOperation, error) {
	ops := make([]secrets.PlainBatchOperation, 0, len(b.Requests))

	for i, r := range b.Requests {
		method, err := parseBatchMethod(r.Method)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}

		if method != domain.BatchMethodCreate && r.Secret.ID == "" {
			return nil, fmt.Errorf("request %d: %s requires a secret id", i, r.Method)
		}

		ops = append(ops, secrets.PlainBatchOperation{
			Method: method,
			Secret: secrets.PlainSecret{
				ID:      r.Secret.ID,
				Type:    domain.SecretType(r.Secret.Type),
				Key:     r.Secret.Key,
				Value:   r.Secret.Value,
				Comment: r.Secret.Comment,
				Tags:    r.Secret.Tags,
			},
		})
	}

	return ops, nil
}

func parseBatchMethod(method string) (domain.BatchMethod, error) {
	switch strings.ToUpper(method) {
	case "CREATE", string(domain.BatchMethodCreate):
		return domain.BatchMethodCreate, nil
	case "UPDATE", string(domain.BatchMethodUpdate):
		return domain.BatchMethodUpdate, nil
	case string(domain.BatchMethodDelete):
		return domain.BatchMethodDelete, nil
	}

	return "", fmt.Errorf("unsupported method %q", method)
}

func tagNames(tags []domain.SecretTag) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}

	return strings.Join(names, ", ")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/pkg/registry"
)

var (
	registryFile    string
	registryVersion string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Work with template override registries",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a registry file merges cleanly into the catalog",
	Long: `Validate loads a registry file and merges it into the builtin catalog
with the same checks the workers run at startup.`,
	RunE: runRegistryValidate,
}

var registryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the builtin templates as a registry file",
	Long: `Export writes every builtin template in registry form. The file is a
starting point for overrides.`,
	RunE: runRegistryExport,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryValidateCmd, registryExportCmd)

	registryCmd.PersistentFlags().StringVar(&registryFile, "path", "configs/template-registry.json", "registry file")
	registryExportCmd.Flags().StringVar(&registryVersion, "version", "1.0.0", "registry version to stamp")
}

func runRegistryValidate(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryFile)
	if err != nil {
		return err
	}
	merged, err := catalog.Default().WithOverrides(reg)
	if err != nil {
		return err
	}

	builtin := make(map[string]bool)
	for _, name := range catalog.Default().Names() {
		builtin[name] = true
	}
	replaced, added := 0, 0
	for _, e := range reg.Templates {
		if builtin[e.Name] {
			replaced++
		} else {
			added++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: version %s, %d replaced, %d added, %d templates total\n",
		registryFile, reg.Version, replaced, added, len(merged.Names()))
	return nil
}

func runRegistryExport(cmd *cobra.Command, args []string) error {
	reg := &registry.TemplateRegistry{Version: registryVersion}
	for _, t := range catalog.Default().All() {
		reg.Templates = append(reg.Templates, catalog.ToEntry(t))
	}
	if err := registry.WriteRegistry(registryFile, reg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d templates to %s\n", len(reg.Templates), registryFile)
	return nil
}

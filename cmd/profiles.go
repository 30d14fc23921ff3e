package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/formfill/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect configured profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	Run: func(cmd *cobra.Command, _ []string) {
		logger := newLogger()

		set, err := loadProfiles()
		if err != nil {
			logger.Fatal("loading profiles", zap.Error(err))
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Name", "Title", "Years", "Skills", "Salary")

		for _, p := range set.All() {
			years, _ := p.DefaultYears()
			salary, _ := p.Salary()
			if err := table.Append([]string{p.Name, p.Title, years, skills(p), salary}); err != nil {
				logger.Fatal("listing profiles", zap.Error(err))
			}
		}

		if err := table.Render(); err != nil {
			logger.Fatal("listing profiles", zap.Error(err))
		}
	},
}

var profilesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the profiles section of the config",
	Run: func(cmd *cobra.Command, _ []string) {
		logger := newLogger()

		set, err := loadProfiles()
		if err != nil {
			logger.Fatal("invalid profiles", zap.Error(err))
		}

		if set.Len() == 0 {
			logger.Fatal("invalid profiles", zap.Error(profile.ErrNoProfiles))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d profiles are valid: %s\n", set.Len(), strings.Join(set.Names(), ", "))
	},
}

func init() {
	profilesCmd.AddCommand(profilesListCmd, profilesValidateCmd)
	rootCmd.AddCommand(profilesCmd)
}

func skills(p profile.Profile) string {
	names := make([]string, 0, len(p.SkillExperience))
	for name, years := range p.SkillExperience {
		names = append(names, fmt.Sprintf("%s=%d", name, years))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

package cmds

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/colloquy/pkg/dialogue"
)

var (
	listHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	listIDStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the philosophers and authors available for dialogues",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := dialogue.DefaultCatalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, listHeaderStyle.Render("Philosophers"))
			for _, id := range catalog.PhilosopherIDs() {
				p, _ := catalog.Philosopher(id)
				fmt.Fprintf(out, "  %s  %s (%s)\n", listIDStyle.Render(id), p.Name, p.Era)
			}

			fmt.Fprintln(out, "")
			fmt.Fprintln(out, listHeaderStyle.Render("Authors"))
			for _, id := range catalog.AuthorIDs() {
				a, _ := catalog.Author(id)
				fmt.Fprintf(out, "  %s  %s\n", listIDStyle.Render(id), a.Name)
			}
			return nil
		},
	}
}

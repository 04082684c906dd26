package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var semestersLogin loginFlags

func init() {
	semestersLogin = addLoginFlags(semestersCmd)
	rootCmd.AddCommand(semestersCmd)
}

var semestersCmd = &cobra.Command{
	Use:   "semesters --roll <roll no> --dob <dd/mm/yyyy>",
	Short: "Logs in and prints the semester list of the student's branch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, result, err := semestersLogin.login(cmd.Context())
		if err != nil {
			return err
		}
		semesters, err := client.Semesters(cmd.Context(), result.Hidden)
		if err != nil {
			return err
		}

		var out bytes.Buffer
		err = json.Indent(&out, semesters, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(out.String())
		return nil
	},
}

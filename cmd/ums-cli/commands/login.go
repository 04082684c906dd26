package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"umsassist-backend/internal/components/telemetry"
	"umsassist-backend/internal/scrapers/ums"
	"umsassist-backend/pkg/restyutil"

	"github.com/spf13/cobra"
)

type loginFlags struct {
	baseUrl    *string
	rollNo     *string
	dob        *string
	captchaOut *string
}

func addLoginFlags(cmd *cobra.Command) loginFlags {
	flags := loginFlags{
		baseUrl:    cmd.Flags().String("base-url", ums.DefaultBaseUrl, "Base url of the portal."),
		rollNo:     cmd.Flags().String("roll", "", "Roll number."),
		dob:        cmd.Flags().String("dob", "", "Date of birth as the portal expects it (dd/mm/yyyy)."),
		captchaOut: cmd.Flags().String("captcha-out", "captcha.png", "Where to write the captcha image."),
	}
	cmd.MarkFlagRequired("roll")
	cmd.MarkFlagRequired("dob")
	return flags
}

// login walks through the captcha flow interactively, the captcha is written
// to a file and its text is read from stdin.
func (f loginFlags) login(ctx context.Context) (*ums.Client, ums.LoginResult, error) {
	telemetry.InitSlog(*verbose)

	opts := ums.Options{
		BaseUrl: *f.baseUrl,
		Timeout: 30 * time.Second,
	}
	if *verbose {
		output, err := restyutil.NewFilesystemOutput(".dev/resty/ums-cli")
		if err != nil {
			return nil, ums.LoginResult{}, err
		}
		opts.Dump = output
	}

	client, err := ums.NewClient(opts, telemetry.SlogAPI{})
	if err != nil {
		return nil, ums.LoginResult{}, err
	}

	initResult, err := client.Init(ctx)
	if err != nil {
		return nil, ums.LoginResult{}, err
	}
	err = os.WriteFile(*f.captchaOut, initResult.CaptchaImage, 0600)
	if err != nil {
		return nil, ums.LoginResult{}, fmt.Errorf("write captcha: %w", err)
	}

	fmt.Fprintf(os.Stderr, "captcha written to %s, enter its text: ", *f.captchaOut)
	captcha, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && captcha == "" {
		return nil, ums.LoginResult{}, fmt.Errorf("read captcha: %w", err)
	}

	result, err := client.Login(ctx, ums.LoginRequest{
		RollNo:      *f.rollNo,
		DateOfBirth: *f.dob,
		Captcha:     strings.TrimSpace(captcha),
	})
	if err != nil {
		return nil, ums.LoginResult{}, err
	}
	fmt.Fprintf(os.Stderr, "logged in as %s (%s)\n", result.Profile.StudentName, result.Profile.CourseName)
	return client, result, nil
}

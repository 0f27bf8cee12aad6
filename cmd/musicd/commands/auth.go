package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytget/musicd"
	"github.com/ytget/musicd/cookies"
)

// probeVideoID is a stable, always-available video used to exercise the
// extraction strategies during `auth check`.
const probeVideoID = "dQw4w9WgXcQ"

const setupInstructions = `# YouTube Authentication Setup

Cookie-based authentication is optional but improves reliability for
age-restricted and login-gated tracks. musicd reads a Netscape-format
cookies.txt file.

## Exporting cookies

1. Install a browser extension such as "Get cookies.txt LOCALLY".
2. Go to youtube.com and log in.
3. Export cookies for the youtube.com domain to a file named
   'youtube_cookies.txt'.
4. Place the file next to the musicd binary, or point MUSICD_COOKIES_FILE
   (or the --cookies flag) at it.

Only youtube.com and google.com cookies are used; everything else in the
export is ignored. The authentication cookies that matter are SID, HSID,
SSID, APISID, SAPISID and their __Secure-* variants.

## Verifying

Run:

    musicd auth check

It reports whether the cookie file was found, whether it carries auth
cookies, whether those are expired, and which extraction strategies
currently succeed.

## Troubleshooting

If you still see authentication errors:

1. Re-export the cookies: they expire, and an expired export is silently
   useless.
2. Make sure you were logged into YouTube when exporting.
3. Check whether your IP is rate limited (HTTP 429 responses).
4. Consider a proxy or VPN if you are in a restricted region.

Without cookies the server still works for most public tracks: it tries
several YouTube clients in turn and only the login-gated content needs
an authenticated session.
`

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage YouTube cookie authentication",
	}
	cmd.AddCommand(authSetupCmd(), authCheckCmd())
	return cmd
}

func authSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Write cookie setup instructions and report cookie status",
		RunE: func(cmd *cobra.Command, args []string) error {
			const doc = "YOUTUBE_AUTH_SETUP.md"
			if err := os.WriteFile(doc, []byte(setupInstructions), 0o644); err != nil {
				return fmt.Errorf("write instructions: %w", err)
			}
			fmt.Printf("Wrote %s with cookie export instructions.\n\n", doc)
			reportCookieStatus()
			return nil
		},
	}
}

func authCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify cookies and probe each extraction strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			reportCookieStatus()

			svc := musicd.New(cfg)
			if err := svc.Init(); err != nil {
				return err
			}
			defer svc.Close()

			fmt.Printf("\nProbing extraction strategies against video %s...\n", probeVideoID)
			results, err := svc.Probe(cmd.Context(), probeVideoID)
			if err != nil {
				return err
			}
			ok := 0
			for _, r := range results {
				if r.Err != nil {
					fmt.Printf("  ✗ %-12s %v (%s)\n", r.Strategy, r.Err, r.Elapsed.Round(time.Millisecond))
					continue
				}
				ok++
				fmt.Printf("  ✓ %-12s ok (%s)\n", r.Strategy, r.Elapsed.Round(time.Millisecond))
			}
			if ok == 0 {
				return fmt.Errorf("all strategies failed, see YOUTUBE_AUTH_SETUP.md")
			}
			fmt.Printf("\n%d of %d strategies working.\n", ok, len(results))
			return nil
		},
	}
}

func reportCookieStatus() {
	path := cfg.CookiesFile
	if path == "" {
		path = cookies.DefaultPath()
	}
	jar, err := cookies.Load(path)
	switch {
	case err != nil:
		fmt.Printf("Cookie file %s: unreadable: %v\n", path, err)
	case jar == nil:
		fmt.Printf("Cookie file %s: not found, running anonymously.\n", path)
	default:
		fmt.Printf("Cookie file %s: %d cookies", path, jar.Len())
		if !jar.HasAuth() {
			fmt.Print(", no auth cookies")
		} else if jar.Expired() {
			fmt.Print(", auth cookies EXPIRED (re-export)")
		} else {
			fmt.Print(", auth OK")
		}
		fmt.Println()
	}
}

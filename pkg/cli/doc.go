/*
Package cli holds helpers shared by the tollgate commands: output
formatting, typed command errors, signal handling and a client for the
gateway's admin API.

Output formatting:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, status); err != nil {
		return err
	}

Talking to a running gateway:

	client := cli.NewClient("http://127.0.0.1:8080", 10*time.Second)
	var status handlers.Status
	if err := client.Get(ctx, "/admin/status", &status); err != nil {
		return err
	}

Errors returned by the admin API are *APIError values carrying the HTTP
status and the server's message.
*/
package cli

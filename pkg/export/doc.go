// Package export writes usage records as CSV or JSON for the admin records
// endpoint and the records command.
//
//	exp, err := export.New("csv")
//	if err != nil {
//	    return err
//	}
//	err = exp.Export(ctx, records, os.Stdout)
package export

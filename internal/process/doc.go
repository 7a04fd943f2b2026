// Package process supervises the scanner gateway process.
//
// When gateway.managed is set, autoscand owns the vendor gateway binary:
// it starts it in its own process group, logs its output line by line,
// checks it through a health function and restarts it with exponential
// backoff when it dies or stops answering. A run that lasts longer than
// StableThreshold resets the backoff.
//
//	mgr := process.NewManager(process.ForGateway(cfg.Gateway, func(ctx context.Context) error {
//	    _, err := gw.Devices(ctx)
//	    return err
//	}))
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process

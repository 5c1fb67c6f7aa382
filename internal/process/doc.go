// Package process provides low-level subprocess control for dzpanel.
//
// It is deliberately policy-free: the Runner spawns a child in its own
// process group, streams its stdout/stderr line by line to a sink, reports
// exit via a callback, and kills by PID (SIGTERM to the group, SIGKILL
// after a timeout). Lifecycle policy (grace periods, scheduled restarts,
// crash handling) lives in the supervisor package on top of this.
//
// Example usage:
//
//	r := process.NewRunner(process.Config{
//	    Name:            "dayz-server",
//	    Binary:          "/opt/dayz-server/DayZServer",
//	    Args:            []string{"-config=serverDZ.cfg", "-port=2302"},
//	    WorkDir:         "/opt/dayz-server",
//	    GracefulTimeout: 30 * time.Second,
//	})
//
//	if err := r.Start(ctx); err != nil {
//	    return err
//	}
//	defer r.Stop(ctx)
package process

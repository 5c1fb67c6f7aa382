// Package dayz describes how the DayZ dedicated server is launched.
//
// It owns the launch configuration (ports, CPU count, config file, profile
// and BattlEye directories, logging flags), its validation, the mod list
// rules, and the translation of all of that into the server's command-line
// arguments.
//
// The package holds no process state; the supervisor package owns the
// running server and consults this one when building a launch.
package dayz

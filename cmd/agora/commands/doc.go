// Package commands defines the agora CLI.
//
// Commands
//
//   - me                     Print the signed-in user
//   - marketplaces list      List marketplaces
//   - marketplaces create    Create a marketplace
//   - marketplaces show      Show one marketplace by slug
//   - jobs list|open         List jobs of a marketplace
//   - jobs create            Post a job
//   - jobs take|complete|pay Move a job through its lifecycle
//   - producer register      Apply as a producer
//   - producer status        Change your producer status
//   - admin approve|reject   Decide a producer application
//   - admin set-role         Assign a member role
//
// # Implementation
//
// The root command builds a backend client and a store before any subcommand
// runs. When credentials are given it signs in, otherwise it bootstraps with
// whatever session the backend reports. Every command prints JSON.
package commands

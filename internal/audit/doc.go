// Package audit keeps a trail of device mutations.
//
// A Recorder observes the device registry and writes one Entry per create,
// update or delete, tagged with where the mutation came from (this
// replica's API or the replication bus) and, for API calls, the user who
// made it. Entries are stored in the same database as the devices and are
// listed newest first through the admin API.
package audit

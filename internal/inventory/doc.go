// Package inventory records completed (location, NID) pairs in the
// inventory database.
//
// Two Client implementations exist. SSHClient runs the autoscan command on
// the inventory host and reads its exit status. LocalClient applies the
// same update in-process when autoscand runs next to the database. Both
// report results with the exit statuses of cmd/autoscan:
//
//	0  ok
//	1  could not open the inventory database
//	2  could not commit
//	3  endpoint reserved (it carries a user or a comment)
//	4  location code not recognised
//	5  usage error
//
// Store holds the update rules themselves and is shared by LocalClient
// and cmd/autoscan.
package inventory

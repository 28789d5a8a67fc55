/*
Package server implements the memcached text-line protocol front-end.

Requests are ASCII lines terminated by \r\n; the first space-separated token
selects the command, matched case-insensitively. Supported verbs:

	SET <key> <flags> <exptime> <datalen> [noreply]   followed by <datalen> bytes + \r\n
	GET <key> [<key> ...]
	DELETE <key> [noreply]
	DUMP / DUMPLOG / DUMPCOMMIT                       debug verbs, no reply

Unknown verbs and wrong arity reply ERROR. A token that fails to parse (a
non-integer where an integer is required) is logged and the reply suppressed,
keeping the connection open. Over-long lines are discarded up to the next
delimiter rather than dropping the connection.

Every mutating path goes through the store's Apply entry point; the server
never touches the live map directly.
*/
package server

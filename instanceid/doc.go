// Package instanceid supplies the identifier a replica uses in leader
// elections. The identifier is assigned once per process, either from
// configuration or generated as "<unix-millis>-<uuid>", and is compared as a
// plain string: the higher identifier wins every tie-break.
package instanceid

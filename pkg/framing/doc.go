/*
Package framing implements the newline-delimited control-plane channel used
between the mrlite scheduler and its agents.

Each message is percent-encoded and terminated by a single '\n'. Encoding is
symmetric: Decode(Encode(p)) == p for any byte string, including payloads
containing newlines, '%', or non-ASCII bytes. Framing is FIFO per channel;
there is no ordering guarantee across channels.

Binary payloads such as the serialized job configuration are additionally
base64-encoded by the caller before framing, keeping every frame 7-bit safe.
*/
package framing

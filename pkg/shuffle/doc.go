/*
Package shuffle implements the hand-off of per-reducer partition files from
mapper hosts to reducer hosts.

After a batch mapper's child exits successfully, its agent runs the Mover:
every file the mapper wrote under
<output_path>/<identity>-mapper-<mmmmm>-reducer-<rrrrr>-<seq> is routed by
its reducer index. The destination rank is index + num_map_workers; the
destination host and directory come from the global task list. Files
already sitting in the destination directory stay put, same-host files are
moved locally, and cross-host files are copied over the remote transport
and then deleted at the source. An empty set is fine — a mapper may
legitimately produce nothing for a reducer.

Before a batch reducer spawns, its agent runs Prepare: the partitions
destined for this reducer are renamed into the densely numbered sequence
<input_path>/<identity>-<kkkkkkkkkk>, and the count feeds the reducer's
--mr_num_reduce_input_buffer_files flag. Zero partitions at prepare time
aborts the job.
*/
package shuffle

// Package io reads build inputs and reads and writes serialized graphs.
//
// # Input Format
//
// An input document bundles everything [depgraph.Build] needs:
//
//	{
//	  "manifests": [
//	    {"name": "app", "version": "1.0.0", "isLocal": true,
//	     "dependencies": {"plugin": "^1.0.0", "host": "^2.0.0"}},
//	    {"name": "plugin", "version": "1.2.0", "peerDependencies": {"host": ">=2"}},
//	    {"name": "host", "version": "2.3.1"}
//	  ],
//	  "resolutions": {
//	    "plugin": {"^1.0.0": "1.2.0"},
//	    "host": {"^2.0.0": "2.3.1"}
//	  },
//	  "failOnMissingPeerDependencies": true
//	}
//
// The same structure is accepted as YAML. [LoadInput] picks the decoder from
// the file extension; [ReadInput] takes the format explicitly. The first
// manifest is the graph root. failOnMissingPeerDependencies defaults to true.
//
// # Output Format
//
// [WriteGraph] writes the graph as
//
//	{"nodes": [{"id", "name", "version"}], "links": [{"sourceId", "targetId"}]}
//
// with node IDs equal to array positions. [WriteReport] adds a
// "diagnostics" array next to those two keys. [ReadGraph] reads either form
// back and checks that IDs and links are consistent.
//
// [depgraph.Build]: github.com/matzehuels/peergraph/pkg/depgraph.Build
package io

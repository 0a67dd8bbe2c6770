/*
Package radio is a streaming DSP core for software defined radio.

Concept

A signal chain is built from blocks connected with streams. Every block
runs its worker in its own goroutine:

    Source - produces samples into its output stream;
    Processor - reads one input stream and writes one output stream;
    Sink - consumes samples of its input stream.

A stream is a double-buffered handoff between exactly one writer and one
reader. The writer fills the write buffer and swaps it, the reader
consumes the read buffer and flushes it. Both sides block until the
other one is done, so a chain is naturally backpressured. Stopping a
stream unblocks its waiters and makes their calls return a negative
count, which is how workers learn they must exit.

Lifecycle

Blocks are started and stopped explicitly. Parameters of a running block
are changed within Reconfigure: the worker is paused, the change is
applied and the worker is resumed. Composite blocks are assembled with
block.Hier, which forwards lifecycle calls to its children.

Packages

    stream - double-buffered stream;
    ring - ring buffer with reader and writer stops;
    block - block lifecycle, Processor, Source, Sink and Hier;
    loop - phase control loop, PLL, Costas loop and carrier tracking PLL;
    deframe - sync word deframers, Manchester decoder and bit packer;
    routing - stream splitter;
    sink - handler and null sinks;
    wav - IQ WAV file source and sink;
    config - pipeline configuration;
    metric - per-block counters;
    mock - test source and sink.

Command iqsync wires a WAV source, a carrier recovery loop and a WAV sink
together.
*/
package radio

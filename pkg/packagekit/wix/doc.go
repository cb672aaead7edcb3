/*
Package wix is a lightweight wrapper around the wix tooolset, and the
pieces needed to turn a set of conda package archives into a wix
source.

It is heavily inspired by golang's build system (2)

# Background and Theory Of Operations

wix's toolchain is based around compiling xml files into
installers. Wix provides a variety of tools that can help simply
this. This package leverages them.

The basic steps of making a package:
 1. Enumerate the archives. The runtime comes first, the interpreter
    second, everything else in order.
 2. Fill a template with scalar tokens (escaped), and xml fragments
    for the components (raw).
 3. Optionally, unpack each archive and use `heat` to harvest it.
 4. Use `candle` to compile the wxs files into wixobjs
 5. Use `light` to link the wixobjs into an msi

Component ids that windows compares across installs (the upgrade
code, the folder removal components) are v5 uuids in a fixed
namespace. Changing DefaultNamespace breaks upgrades of every
installer already shipped.

While this is a somewhat agnostic wrapper, it does make several
assumptions about the underlying process. It is not meant as a
complete wix wrapper.

# References

 1. http://wixtoolset.org/
 2. https://github.com/golang/build/blob/790500f5933191797a6638a27127be424f6ae2c2/cmd/release/releaselet.go#L224
*/
package wix

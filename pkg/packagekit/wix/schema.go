package wix

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// This is a partial schema of the wix elements we emit, and of what
// heat emits. See https://wixtoolset.org/documentation/manual/v3/xsd/wix/

type YesNoType string

const (
	Yes YesNoType = "yes"
	No  YesNoType = "no"
)

type InstallUninstallType string

const (
	InstallUninstallInstall   InstallUninstallType = "install"
	InstallUninstallUninstall InstallUninstallType = "uninstall"
	InstallUninstallBoth      InstallUninstallType = "both"
)

type Wix struct {
	XMLName   xml.Name      `xml:"Wix"`
	Fragments []WixFragment `xml:"Fragment"`
}

// WixFragment is the wix `Fragment` element. (Fragment is the
// template splice.)
type WixFragment struct {
	DirectoryRefs   []DirectoryRef   `xml:"DirectoryRef"`
	ComponentGroups []ComponentGroup `xml:"ComponentGroup"`
}

type DirectoryRef struct {
	Id          string      `xml:",attr"`
	Directories []Directory `xml:"Directory"`
	Components  []Component `xml:"Component"`
}

type Directory struct {
	XMLName     xml.Name    `xml:"Directory"`
	Id          string      `xml:",attr"`
	Name        string      `xml:",attr,omitempty"`
	Components  []Component `xml:"Component"`
	Directories []Directory `xml:"Directory"`
}

type ComponentGroup struct {
	Id            string         `xml:",attr"`
	Components    []Component    `xml:"Component"`
	ComponentRefs []ComponentRef `xml:"ComponentRef"`
}

type Component struct {
	XMLName       xml.Name       `xml:"Component"`
	Id            string         `xml:",attr"`
	Guid          string         `xml:",attr"`
	Files         []File         `xml:"File"`
	RemoveFiles   []RemoveFile   `xml:"RemoveFile"`
	RemoveFolders []RemoveFolder `xml:"RemoveFolder"`
}

type File struct {
	Id      string    `xml:",attr"`
	Name    string    `xml:",attr,omitempty"`
	Source  string    `xml:",attr"`
	KeyPath YesNoType `xml:",attr,omitempty"`
}

type RemoveFile struct {
	Id   string               `xml:",attr"`
	On   InstallUninstallType `xml:",attr"`
	Name string               `xml:",attr"`
}

type RemoveFolder struct {
	Id string               `xml:",attr"`
	On InstallUninstallType `xml:",attr"`
}

type ComponentRef struct {
	XMLName xml.Name `xml:"ComponentRef"`
	Id      string   `xml:",attr"`
}

type ComponentGroupRef struct {
	XMLName xml.Name `xml:"ComponentGroupRef"`
	Id      string   `xml:",attr"`
}

// RetFiles returns every File in the wix document, depth first.
func (w *Wix) RetFiles() []File {
	var files []File
	for _, frag := range w.Fragments {
		for _, dr := range frag.DirectoryRefs {
			files = append(files, componentFiles(dr.Components)...)
			files = append(files, directoryFiles(dr.Directories)...)
		}
		for _, cg := range frag.ComponentGroups {
			files = append(files, componentFiles(cg.Components)...)
		}
	}
	return files
}

func directoryFiles(dirs []Directory) []File {
	var files []File
	for _, d := range dirs {
		files = append(files, componentFiles(d.Components)...)
		files = append(files, directoryFiles(d.Directories)...)
	}
	return files
}

func componentFiles(components []Component) []File {
	var files []File
	for _, c := range components {
		files = append(files, c.Files...)
	}
	return files
}

// xmlLines encodes v as indented xml, and returns it split into
// lines, ready to be joined by a Fragment separator.
func xmlLines(v interface{}) ([]string, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return strings.Split(buf.String(), "\n"), nil
}

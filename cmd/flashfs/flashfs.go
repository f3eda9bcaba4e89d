/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Tue Apr 24 14:10:33 2018 mstenber
 * Last modified: Mon May 21 13:26:44 2018 mstenber
 * Edit time:     84 min
 *
 */

package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"runtime/pprof"

	"github.com/fingon/go-flashfs/ffs"
	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/flash/factory"
	"github.com/fingon/go-flashfs/fuseconn"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n\n%s [flags] COMMAND [ARGS]\n\nCommands: mount MOUNTDIR | ls PATH | cat PATH | put PATH LOCALFILE | mkdir PATH | rm PATH | mv FROM TO | df\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	backendp := flag.String("backend", "bolt",
		fmt.Sprintf("Backend to use (possible: %v)", factory.List()))
	dir := flag.String("dir", ".", "Directory the backend keeps its state in")
	password := flag.String("password", "", "Password (empty = no encryption)")
	salt := flag.String("salt", "salt", "Salt")
	areas := flag.Int("areas", 8, "Number of flash areas")
	areaSize := flag.Uint("areasize", 65536, "Bytes per flash area")
	doFormat := flag.Bool("format", false, "Format instead of restoring")
	cpuprofile := flag.String("cpuprofile", "", "CPU profile file")

	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	size := uint32(*areas) * uint32(*areaSize)
	conf := factory.CryptoDeviceConfiguration{
		Config:      flash.Config{Directory: *dir, Size: size},
		BackendName: *backendp,
		Password:    *password,
		Salt:        *salt,
	}
	dev, err := factory.NewCryptoDevice(conf)
	if err != nil {
		log.Fatal("device: ", err)
	}

	descs := make([]flash.Desc, *areas)
	for i := range descs {
		descs[i] = flash.Desc{Offset: uint32(i) * uint32(*areaSize), Length: uint32(*areaSize)}
	}

	fs := ffs.FFS{Dev: dev}.Init()
	if *doFormat {
		err = fs.Format(descs)
	} else {
		err = fs.Restore(descs)
	}
	if err != nil {
		log.Fatal("mount: ", err)
	}
	defer fs.Close()

	if err = run(fs, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(fs *ffs.FFS, args []string) error {
	cmd := args[0]
	args = args[1:]
	need := func(n int) {
		if len(args) != n {
			flag.Usage()
			os.Exit(1)
		}
	}
	switch cmd {
	case "mount":
		need(1)
		server, err := fuseconn.NewServer(fs, args[0])
		if err != nil {
			return err
		}
		server.Serve()
		return nil
	case "ls":
		need(1)
		infos, err := fs.ReadDir(args[0])
		if err != nil {
			return err
		}
		for _, info := range infos {
			kind := "-"
			if info.Dir {
				kind = "d"
			}
			fmt.Printf("%s %8d %s\n", kind, info.Size, info.Name)
		}
		return nil
	case "cat":
		need(1)
		info, err := fs.Stat(args[0])
		if err != nil {
			return err
		}
		f, err := fs.Open(args[0], ffs.AccessRead)
		if err != nil {
			return err
		}
		defer f.Close()
		buf := make([]byte, info.Size)
		n, err := f.Read(buf)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(buf[:n])
		return err
	case "put":
		need(2)
		data, err := ioutil.ReadFile(args[1])
		if err != nil {
			return err
		}
		f, err := fs.Open(args[0], ffs.AccessCreate|ffs.AccessWrite|ffs.AccessTruncate)
		if err != nil {
			return err
		}
		defer f.Close()
		return f.Write(data)
	case "mkdir":
		need(1)
		return fs.Mkdir(args[0])
	case "rm":
		need(1)
		return fs.Unlink(args[0])
	case "mv":
		need(2)
		return fs.Rename(args[0], args[1])
	case "df":
		need(0)
		fmt.Printf("%d / %d bytes free\n", fs.BytesFree(), fs.BytesTotal())
		return nil
	}
	flag.Usage()
	os.Exit(1)
	return nil
}

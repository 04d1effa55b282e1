package buildsys

import (
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"
)

func init() {
	gob.Register(TaskList{})
	gob.Register(Task{})
	gob.Register(TaskCmdScript{})
	gob.Register(TaskCmdTaskRef{})
	gob.Register(TaskCmdInvoke{})
	gob.Register(TaskCmdAction{})
}

// WriteCache stores the options used to configure a task script together with the resulting tasks
func WriteCache(file string, options map[string]string, list TaskList) error {
	handle, err := os.Create(file)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", file)
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	if err = encoder.Encode(options); err != nil {
		return eris.Wrap(err, "failed to encode options")
	}

	if err = encoder.Encode(list); err != nil {
		return eris.Wrap(err, "failed to encode tasks")
	}
	return nil
}

// ReadCache loads a cache written by WriteCache
func ReadCache(file string) (map[string]string, TaskList, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var options map[string]string
	if err = decoder.Decode(&options); err != nil {
		return nil, nil, eris.Wrapf(err, "failed to decode options from %s", file)
	}

	var result TaskList
	if err = decoder.Decode(&result); err != nil {
		return options, nil, eris.Wrapf(err, "failed to decode tasks from %s", file)
	}

	return options, result, nil
}

// CacheValid reports whether the cache file is newer than all of the given sources
func CacheValid(file string, sources ...string) bool {
	info, err := os.Stat(file)
	if err != nil {
		return false
	}

	for _, src := range sources {
		srcInfo, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false
		}

		if srcInfo.ModTime().After(info.ModTime()) {
			return false
		}
	}
	return true
}

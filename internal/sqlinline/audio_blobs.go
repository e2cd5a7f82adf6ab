package sqlinline

// Queries for the database-attached blob variant of the artifact store. The
// audio bytes live in a bytea column and are streamed out by the API.

const QInsertAudioBlob = `--sql 2b7e4d1c-5a9f-4c3b-8e6d-3f1a7b2c4d8e
insert into story_audio_blobs (story_id, filename, content_type, data, metadata)
values ($1, $2, $3, $4, $5)
on conflict (story_id) do update
set filename = excluded.filename,
    content_type = excluded.content_type,
    data = excluded.data,
    metadata = excluded.metadata,
    created_at = now()
returning id;
`

const QGetAudioBlobByStoryID = `--sql 6d1f8a3b-4c7e-4b2d-9a5c-8e2b6f4d1a3c
select filename, content_type, data
from story_audio_blobs
where story_id = $1;
`

const QDeleteAudioBlobByStoryID = `--sql a5c3e8d2-1b6f-4d9a-8c4e-2f7b3a9d5e1c
delete from story_audio_blobs
where story_id = $1;
`

package sqlinline

// Inline SQL for the stories table. Every query carries a marker line so the
// SQL runner can correlate log lines with the statement that produced them.

const QInsertStory = `--sql 7c1f2a9e-3b6d-4f1e-9a2c-8d5e4b3a1c0f
insert into stories (
    user_id, child_name, child_age, story_genre, story_tone, story_lesson,
    siblings_friends, pet_mascot, favorite_food_place,
    current_emotional_challenge, request_dialog_humor, status
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'generating')
returning id, created_at, updated_at;
`

const QGetStoryByID = `--sql 1e8b4c2d-9f3a-4e6b-8c1d-2a7f5e9b3d4c
select id, user_id, child_name, child_age, story_genre, story_tone,
       story_lesson, siblings_friends, pet_mascot, favorite_food_place,
       current_emotional_challenge, request_dialog_humor, status,
       story_text, audio_url, error_message, ai_model,
       generation_duration_ms, generation_started_at, completed_at,
       created_at, updated_at
from stories
where id = $1;
`

// QClaimStory is the concurrency guard for duplicate triggers: only a
// generating, not-yet-started record matches, so a second overlapping run
// sees zero rows and backs off.
const QClaimStory = `--sql 5d2e8f1a-6c4b-4d9e-b3a7-9e1c2f8d5b6a
update stories
set generation_started_at = now(), updated_at = now()
where id = $1 and status = 'generating' and generation_started_at is null
returning id, user_id, child_name, child_age, story_genre, story_tone,
          story_lesson, siblings_friends, pet_mascot, favorite_food_place,
          current_emotional_challenge, request_dialog_humor, status,
          story_text, audio_url, error_message, ai_model,
          generation_duration_ms, generation_started_at, completed_at,
          created_at, updated_at;
`

const QUpdateStory = `--sql 9a4c7e2b-1d8f-4b3a-9c6e-4f2a8b5d1e7c
update stories
set status                 = coalesce($2, status),
    story_text             = coalesce($3, story_text),
    ai_model               = coalesce($4, ai_model),
    audio_url              = coalesce($5, audio_url),
    error_message          = coalesce($6, error_message),
    generation_duration_ms = coalesce($7, generation_duration_ms),
    completed_at           = coalesce($8, completed_at),
    updated_at             = now()
where id = $1;
`

const QListStoriesByUser = `--sql 3f6a1d8c-7b2e-4c5d-a9f1-6e3b8c4d2a5f
select id, user_id, child_name, child_age, story_genre, story_tone,
       story_lesson, siblings_friends, pet_mascot, favorite_food_place,
       current_emotional_challenge, request_dialog_humor, status,
       story_text, audio_url, error_message, ai_model,
       generation_duration_ms, generation_started_at, completed_at,
       created_at, updated_at
from stories
where user_id = $1
order by created_at desc
limit $2 offset $3;
`

const QDeleteStory = `--sql 8b3d5f7a-2c9e-4a1b-8d6f-1a4e7c2b9d3e
delete from stories
where id = $1 and user_id = $2;
`

const QCountStoriesSince = `--sql 4e9c2a6d-8f1b-4e7a-b2c5-7d3f9a1e6b8d
select count(*)
from stories
where user_id = $1 and created_at >= $2;
`

package sqlinline

const QInsertContentItem = `--sql 370b3fff-f1f7-49ff-abb6-c29a48ba5746
insert into content_items (
    id, kind, state, location, prompt, negative_prompt, caption, hashtags,
    image_ref, approval, posted_at, attempts_caption, attempts_image,
    attempts_persist, attempts_post, last_error, created_at, updated_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now(), now());
`

const QGetContentItem = `--sql 03f4cb1e-8f8b-4653-a5f4-f27177ab7055
select id, kind, state, location, prompt, negative_prompt, caption, hashtags,
       image_ref, approval, posted_at, attempts_caption, attempts_image,
       attempts_persist, attempts_post, last_error, created_at, updated_at
from content_items
where id = $1;
`

const QFetchCandidates = `--sql 3dec488d-e364-45d2-983b-dfa2461f225b
select id, kind, state, location, prompt, negative_prompt, caption, hashtags,
       image_ref, approval, posted_at, attempts_caption, attempts_image,
       attempts_persist, attempts_post, last_error, created_at, updated_at
from content_items
where state = any($1)
order by created_at asc, id asc;
`

const QSaveContentItem = `--sql 247c4385-6981-4223-9656-002117783907
update content_items
set state = $2,
    caption = $3,
    hashtags = $4,
    image_ref = $5,
    posted_at = $6,
    attempts_caption = $7,
    attempts_image = $8,
    attempts_persist = $9,
    attempts_post = $10,
    last_error = $11,
    updated_at = now()
where id = $1;
`

const QSetApproval = `--sql 0ddaf7ad-92ab-42b3-85d2-79f390ecfba5
update content_items
set approval = $2, updated_at = now()
where id = $1;
`

const QRequeueContentItem = `--sql 410433dd-0824-4adc-9824-22daed19eb0d
update content_items
set state = $2,
    last_error = '',
    attempts_caption = 0,
    attempts_image = 0,
    attempts_persist = 0,
    attempts_post = 0,
    updated_at = now()
where id = $1 and state = 'failed';
`
